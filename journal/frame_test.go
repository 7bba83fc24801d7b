package journal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"
)

func sampleRecord(runID string) Record {
	return Record{
		Schema:       Schema,
		RunID:        runID,
		Project:      "docs-site",
		StartedAt:    time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		DurationMs:   1250,
		Status:       "success",
		DeploymentID: "dep-001",
		URL:          "https://docs-site.example.app",
		FilesTotal:   42,
		BytesTotal:   1 << 20,
		KeysTotal:    40,
		UploadedKeys: 7,
		ReusedKeys:   33,
	}
}

func TestFrameRoundTrip(t *testing.T) {
	rec := sampleRecord("run-001")

	frame, err := EncodeFrame(rec)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	decoder := NewFrameDecoder(bytes.NewReader(frame))
	payload, err := decoder.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}

	decoded, err := DecodeRecord(payload)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}

	if decoded.RunID != rec.RunID {
		t.Errorf("RunID = %q, want %q", decoded.RunID, rec.RunID)
	}
	if decoded.Project != rec.Project {
		t.Errorf("Project = %q, want %q", decoded.Project, rec.Project)
	}
	if !decoded.StartedAt.Equal(rec.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", decoded.StartedAt, rec.StartedAt)
	}
	if decoded.UploadedKeys != rec.UploadedKeys {
		t.Errorf("UploadedKeys = %d, want %d", decoded.UploadedKeys, rec.UploadedKeys)
	}
}

func TestFrameDecoderMultipleRecords(t *testing.T) {
	var buf bytes.Buffer
	for _, id := range []string{"run-001", "run-002", "run-003"} {
		frame, err := EncodeFrame(sampleRecord(id))
		if err != nil {
			t.Fatalf("EncodeFrame(%s): %v", id, err)
		}
		buf.Write(frame)
	}

	decoder := NewFrameDecoder(&buf)
	var got []string
	for {
		payload, err := decoder.ReadFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		rec, err := DecodeRecord(payload)
		if err != nil {
			t.Fatalf("DecodeRecord: %v", err)
		}
		got = append(got, rec.RunID)
	}

	want := []string{"run-001", "run-002", "run-003"}
	if len(got) != len(want) {
		t.Fatalf("decoded %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("records[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFrameDecoderTruncatedPayload(t *testing.T) {
	frame, err := EncodeFrame(sampleRecord("run-001"))
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	truncated := frame[:LengthPrefixSize+(len(frame)-LengthPrefixSize)/2]

	decoder := NewFrameDecoder(bytes.NewReader(truncated))
	_, err = decoder.ReadFrame()
	if err == nil {
		t.Fatal("expected an error for a truncated frame")
	}
	if !IsTruncatedFrame(err) {
		t.Errorf("expected a truncation error, got: %v", err)
	}

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("error type = %T, want *FrameError", err)
	}
	if frameErr.Kind != FrameErrorPartial {
		t.Errorf("Kind = %v, want FrameErrorPartial", frameErr.Kind)
	}
}

func TestFrameDecoderTruncatedLengthPrefix(t *testing.T) {
	decoder := NewFrameDecoder(bytes.NewReader([]byte{0x00, 0x00}))
	_, err := decoder.ReadFrame()
	if err == nil {
		t.Fatal("expected an error for a truncated length prefix")
	}
	if !IsTruncatedFrame(err) {
		t.Errorf("expected a truncation error, got: %v", err)
	}
}

func TestFrameDecoderOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(MaxPayloadSize+1)); err != nil {
		t.Fatalf("binary.Write: %v", err)
	}

	decoder := NewFrameDecoder(&buf)
	_, err := decoder.ReadFrame()
	if err == nil {
		t.Fatal("expected an error for an oversized frame")
	}
	if IsTruncatedFrame(err) {
		t.Error("oversized frames are corruption, not truncation")
	}

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("error type = %T, want *FrameError", err)
	}
	if frameErr.Kind != FrameErrorTooLarge {
		t.Errorf("Kind = %v, want FrameErrorTooLarge", frameErr.Kind)
	}
}

func TestFrameDecoderEmptyStream(t *testing.T) {
	decoder := NewFrameDecoder(bytes.NewReader(nil))
	if _, err := decoder.ReadFrame(); err != io.EOF {
		t.Errorf("expected io.EOF, got: %v", err)
	}
}

func TestDecodeRecordMalformed(t *testing.T) {
	_, err := DecodeRecord([]byte{0xFF, 0xFF, 0xFF})
	if err == nil {
		t.Fatal("expected a decode error")
	}

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("error type = %T, want *FrameError", err)
	}
	if frameErr.Kind != FrameErrorDecode {
		t.Errorf("Kind = %v, want FrameErrorDecode", frameErr.Kind)
	}
	if IsTruncatedFrame(err) {
		t.Error("decode errors are not truncation")
	}
}

func TestFrameErrorUnwrap(t *testing.T) {
	err := &FrameError{Kind: FrameErrorPartial, Msg: "read failed", Err: io.ErrUnexpectedEOF}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("Unwrap should expose the underlying error to errors.Is")
	}
}
