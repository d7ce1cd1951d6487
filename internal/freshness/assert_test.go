package freshness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goodResult() Result {
	started := time.Date(2024, 3, 5, 10, 15, 0, 0, time.UTC)
	return Result{
		UniqueID:          "source.test.test_source.test_table",
		MaxLoadedAt:       time.Date(2016, 9, 19, 14, 45, 51, 0, time.UTC),
		SnapshottedAt:     started.Add(time.Second),
		MaxLoadedAtAgoSec: 234910.2,
		Status:            StatusWarn,
		Criteria: Criteria{
			WarnAfter:  &Threshold{Count: 10, Period: "hour"},
			ErrorAfter: &Threshold{Count: 18, Period: "hour"},
		},
		ThreadID:      "Thread-3",
		ExecutionTime: 0.2,
		Timing: []Timing{
			{Name: "compile", StartedAt: started, CompletedAt: started.Add(time.Second)},
			{Name: "execute", StartedAt: started.Add(time.Second), CompletedAt: started.Add(2 * time.Second)},
		},
	}
}

func TestCheckPasses(t *testing.T) {
	err := Check(goodResult(), Expect{
		UniqueID: "source.test.test_source.test_table",
		Status:   StatusWarn,
		Criteria: &Criteria{
			WarnAfter:  &Threshold{Count: 10, Period: "hour"},
			ErrorAfter: &Threshold{Count: 18, Period: "hour"},
		},
		MaxLoadedAt:  time.Date(2016, 9, 19, 14, 45, 51, 0, time.UTC),
		ThreadPrefix: "Thread-",
	})
	assert.NoError(t, err)
}

func TestCheckZeroExpectOnlyShape(t *testing.T) {
	assert.NoError(t, Check(goodResult(), Expect{}))
}

func TestCheckStatusMismatch(t *testing.T) {
	err := Check(goodResult(), Expect{Status: StatusPass})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `status = "warn", want "pass"`)
}

func TestCheckCriteriaNullness(t *testing.T) {
	res := goodResult()
	res.Criteria.ErrorAfter = nil

	err := Check(res, Expect{Criteria: &Criteria{
		WarnAfter:  &Threshold{Count: 10, Period: "hour"},
		ErrorAfter: &Threshold{Count: 18, Period: "hour"},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "criteria.error_after = null")
}

func TestCheckCriteriaFilter(t *testing.T) {
	res := goodResult()
	filter := "id > 101"
	res.Criteria.Filter = &filter

	assert.NoError(t, Check(res, Expect{Criteria: &Criteria{
		Filter:     &filter,
		WarnAfter:  &Threshold{Count: 10, Period: "hour"},
		ErrorAfter: &Threshold{Count: 18, Period: "hour"},
	}}))

	err := Check(res, Expect{Criteria: &Criteria{
		WarnAfter:  &Threshold{Count: 10, Period: "hour"},
		ErrorAfter: &Threshold{Count: 18, Period: "hour"},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "criteria.filter")
}

func TestCheckThreadPrefix(t *testing.T) {
	err := Check(goodResult(), Expect{ThreadPrefix: "Worker-"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want prefix")
}

func TestCheckShapeViolations(t *testing.T) {
	t.Run("missing snapshot", func(t *testing.T) {
		res := goodResult()
		res.SnapshottedAt = time.Time{}
		err := Check(res, Expect{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "snapshotted_at is missing")
	})

	t.Run("missing thread id", func(t *testing.T) {
		res := goodResult()
		res.ThreadID = ""
		err := Check(res, Expect{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "thread_id is missing")
	})

	t.Run("wrong timing steps", func(t *testing.T) {
		res := goodResult()
		res.Timing = res.Timing[:1]
		err := Check(res, Expect{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timing has 1 entries")
	})

	t.Run("misnamed timing step", func(t *testing.T) {
		res := goodResult()
		res.Timing[1].Name = "render"
		err := Check(res, Expect{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `timing[1].name = "render"`)
	})
}

func TestGeneratedBetween(t *testing.T) {
	r, err := Parse([]byte(goodReport))
	require.NoError(t, err)

	at := r.Metadata.GeneratedAt
	assert.NoError(t, r.GeneratedBetween(at.Add(-time.Minute), at.Add(time.Minute)))
	// Sub-second skew inside the truncation window is tolerated.
	assert.NoError(t, r.GeneratedBetween(at.Add(500*time.Millisecond), at.Add(time.Minute)))

	require.Error(t, r.GeneratedBetween(at.Add(2*time.Second), at.Add(time.Minute)))
	require.Error(t, r.GeneratedBetween(at.Add(-time.Minute), at.Add(-2*time.Second)))
}

func TestCheckEnv(t *testing.T) {
	r, err := Parse([]byte(goodReport))
	require.NoError(t, err)

	assert.NoError(t, r.CheckEnv(map[string]string{"key": "value"}))
	require.Error(t, r.CheckEnv(map[string]string{"key": "other"}))
	require.Error(t, r.CheckEnv(map[string]string{}))
}
