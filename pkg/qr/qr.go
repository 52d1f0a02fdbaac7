// Package qr implements the attendance QR payload codec: a self-describing
// JSON document that can be re-derived from an activity row at any time and
// verified offline, without a round-trip to a session store.
package qr

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	appErrors "github.com/campushub/activity-attendance-api/pkg/errors"
)

// PayloadType is the discriminator embedded in every attendance payload.
const PayloadType = "attendance"

// isoMillis matches JavaScript's Date.toISOString output, which the original
// payloads were hashed against. Timestamps are normalised to UTC with
// millisecond precision before hashing so re-encoding is stable.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Payload is the wire format embedded in the scanned code.
type Payload struct {
	Type         string `json:"type"`
	ActivityID   int64  `json:"activityId"`
	ActivityName string `json:"activityName"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	Timestamp    string `json:"timestamp"`
	Hash         string `json:"hash"`
}

// Start returns the parsed start time.
func (p *Payload) Start() (time.Time, error) {
	return time.Parse(time.RFC3339, p.StartTime)
}

// End returns the parsed end time.
func (p *Payload) End() (time.Time, error) {
	return time.Parse(time.RFC3339, p.EndTime)
}

// Hash computes the integrity digest for an activity's identity and time
// window: the first 8 hex characters of MD5 over
// "{activityId}-{startISO}-{endISO}". It is not a keyed MAC.
func Hash(activityID int64, startTime, endTime time.Time) string {
	data := fmt.Sprintf("%d-%s-%s", activityID, startTime.UTC().Format(isoMillis), endTime.UTC().Format(isoMillis))
	sum := md5.Sum([]byte(data))
	return hex.EncodeToString(sum[:])[:8]
}

// Encode builds the payload for an activity. The same activity always yields
// the same hash; issuedAt is informational only and never checked.
func Encode(activityID int64, activityName string, startTime, endTime, issuedAt time.Time) Payload {
	return Payload{
		Type:         PayloadType,
		ActivityID:   activityID,
		ActivityName: activityName,
		StartTime:    startTime.UTC().Format(isoMillis),
		EndTime:      endTime.UTC().Format(isoMillis),
		Timestamp:    issuedAt.UTC().Format(isoMillis),
		Hash:         Hash(activityID, startTime, endTime),
	}
}

// EncodeString returns the payload as the JSON text embedded in the code.
func EncodeString(activityID int64, activityName string, startTime, endTime, issuedAt time.Time) (string, error) {
	raw, err := json.Marshal(Encode(activityID, activityName, startTime, endTime, issuedAt))
	if err != nil {
		return "", fmt.Errorf("marshal qr payload: %w", err)
	}
	return string(raw), nil
}

// Decode parses a stored payload without verifying it.
func Decode(payloadText string) (*Payload, error) {
	var payload Payload
	if err := json.Unmarshal([]byte(payloadText), &payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid QR payload format")
	}
	return &payload, nil
}

// Validate parses and verifies a scanned payload against the current time.
// It fails with a ValidationError for malformed structure, a missing or wrong
// type, an expired time window (now past endTime), or a hash mismatch.
func Validate(payloadText string, now time.Time) (*Payload, error) {
	var payload Payload
	if err := json.Unmarshal([]byte(payloadText), &payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid QR payload format")
	}

	if payload.Type != PayloadType {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid QR payload type")
	}
	if payload.ActivityID == 0 || payload.ActivityName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "QR payload missing activity information")
	}
	if payload.StartTime == "" || payload.EndTime == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "QR payload missing time information")
	}

	startTime, err := payload.Start()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid QR payload start time")
	}
	endTime, err := payload.End()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid QR payload end time")
	}

	if now.After(endTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "QR payload expired: activity has ended")
	}

	if payload.Hash != Hash(payload.ActivityID, startTime, endTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "QR payload hash mismatch")
	}

	return &payload, nil
}

// RenderPNG renders the payload text as a PNG data URL suitable for direct
// embedding in an <img> tag.
func RenderPNG(payloadText string, size int) (string, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(payloadText, qrcode.Medium, size)
	if err != nil {
		return "", fmt.Errorf("render qr image: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
