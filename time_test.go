package identity_test

import "time"

var testEpoch = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func nowForTests() time.Time {
	return testEpoch
}

// fixedClock returns a clock pinned to the given time
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
