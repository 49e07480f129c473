// Command remedialctl runs maintenance tasks against the remedial attendance database.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"remedial_go/config"
	"remedial_go/database"

	"gorm.io/gorm"
)

func main() {
	cli := &cli{
		out:  os.Stdout,
		now:  time.Now,
		open: openDatabase,
	}
	if err := cli.rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openDatabase loads configuration and connects without the implicit migration
func openDatabase() (*gorm.DB, string, error) {
	config.LoadConfig()
	config.AppConfig.SkipMigrate = true
	database.Connect()
	if database.DB == nil {
		return nil, "", fmt.Errorf("database not connected")
	}
	return database.DB, config.AppConfig.SchoolYearOverride, nil
}
