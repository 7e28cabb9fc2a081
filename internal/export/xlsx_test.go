package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"qrattend/internal/attendance"
	"qrattend/internal/model"
)

func TestWorkbook(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC)
	records := []attendance.Record{
		{
			CheckIn: model.CheckIn{ID: "c1", AccountID: "a1", SessionID: "s1", Timestamp: ts, Status: model.StatusPresent},
			Account: &model.Account{ID: "a1", Name: "John Doe", Email: "john@student.com", EnrollmentNo: "EN001", Branch: "Computer", Semester: "3", Course: "BE"},
			Session: &model.Session{ID: "s1", Name: "Math - Morning"},
		},
		{
			// no joined entities: every cell falls back to N/A
			CheckIn: model.CheckIn{ID: "c2", AccountID: "ghost", SessionID: "gone", Timestamp: ts, Status: model.StatusPresent},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, records))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Attendance")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Student Name", rows[0][0])
	assert.Equal(t, "John Doe", rows[1][0])
	assert.Equal(t, "Math - Morning", rows[1][6])
	assert.Equal(t, "present", rows[1][7])
	assert.Equal(t, "N/A", rows[2][0])
	assert.Equal(t, "N/A", rows[2][6])
}

func TestFilename(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "attendance-2026-08-30.xlsx", Filename(now))
}
