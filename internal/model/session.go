package model

import "time"

// Stage identifies the screen the operator is on.
type Stage string

const (
	StageHome          Stage = "HOME"
	StageBeforeCapture Stage = "BEFORE_CAPTURE"
	StageCleaning      Stage = "CLEANING"
	StageAfterCapture  Stage = "AFTER_CAPTURE"
	StageResult        Stage = "RESULT"
	StageChat          Stage = "CHAT"
)

// SessionRecord is the single persisted before/after cycle. Images are
// normalized JPEG bytes.
type SessionRecord struct {
	ID          string     `json:"id,omitempty"`
	BeforeImage []byte     `json:"beforeImage,omitempty"`
	AfterImage  []byte     `json:"afterImage,omitempty"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	MergedImage []byte     `json:"mergedImage,omitempty"`
}

// Empty reports whether nothing worth persisting is left in the record.
func (r SessionRecord) Empty() bool {
	return len(r.BeforeImage) == 0 && len(r.MergedImage) == 0
}

// Clone returns a deep copy so callers cannot mutate the machine's record.
func (r SessionRecord) Clone() SessionRecord {
	c := SessionRecord{
		ID:          r.ID,
		BeforeImage: cloneBytes(r.BeforeImage),
		AfterImage:  cloneBytes(r.AfterImage),
		MergedImage: cloneBytes(r.MergedImage),
	}
	if r.StartTime != nil {
		t := *r.StartTime
		c.StartTime = &t
	}
	if r.EndTime != nil {
		t := *r.EndTime
		c.EndTime = &t
	}
	return c
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
