package utils

import (
	"testing"

	"remedial_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDList(t *testing.T) {
	ids, err := ParseIDList(" 4, 9 ,12,")
	require.NoError(t, err)
	assert.Equal(t, []uint{4, 9, 12}, ids)

	ids, err = ParseIDList("")
	require.NoError(t, err)
	assert.Nil(t, ids)

	_, err = ParseIDList("3,abc")
	assert.Error(t, err)

	_, err = ParseIDList("0")
	assert.Error(t, err)
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NoError(t, CheckPassword("s3cret!", hash))
	assert.Error(t, CheckPassword("wrong", hash))
}

func TestIsValidRole(t *testing.T) {
	for _, r := range []string{models.RoleAdmin, models.RoleTeacher, models.RoleParent} {
		assert.True(t, IsValidRole(r), r)
	}
	assert.False(t, IsValidRole("student"))
	assert.False(t, IsValidRole(""))
}

func TestToNotificationDTODefaultsChannels(t *testing.T) {
	dto := ToNotificationDTO(models.Notification{UserID: 5, Title: "t", Message: "m", Type: "warning"})
	assert.Equal(t, []string{"normal"}, dto.Channels)
	assert.Nil(t, dto.Data)
	assert.Equal(t, uint(5), dto.Recipient.ID)

	dto = ToNotificationDTO(models.Notification{
		UserID:   5,
		Channels: models.JSON(`["popup","line"]`),
		Data:     models.JSON(`{"student_id":3}`),
	})
	assert.Equal(t, []string{"popup", "line"}, dto.Channels)
	assert.Equal(t, map[string]interface{}{"student_id": float64(3)}, dto.Data)
}
