package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type apiError struct {
	code string
}

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

// fakeS3 is an in-memory bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &apiError{code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3PutGet(t *testing.T) {
	fake := newFakeS3()
	st := NewS3(fake, "bucket", "diarize")
	ctx := context.Background()

	if err := st.Put(ctx, "room-1/profiles", []byte("data")); err != nil {
		t.Fatal(err)
	}
	if _, ok := fake.objects["diarize/room-1/profiles"]; !ok {
		t.Fatalf("object keys = %v, want prefixed key", fake.objects)
	}
	got, err := st.Get(ctx, "room-1/profiles")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "data" {
		t.Fatalf("got %q", got)
	}
}

func TestS3NotFound(t *testing.T) {
	st := NewS3(newFakeS3(), "bucket", "")
	_, err := st.Get(context.Background(), "missing")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestS3Delete(t *testing.T) {
	fake := newFakeS3()
	st := NewS3(fake, "bucket", "")
	ctx := context.Background()
	if err := st.Put(ctx, "x", []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := st.Delete(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	if len(fake.objects) != 0 {
		t.Fatalf("objects left: %v", fake.objects)
	}
}

func TestS3PutError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = &apiError{code: "AccessDenied"}
	st := NewS3(fake, "bucket", "")
	err := st.Put(context.Background(), "x", []byte("1"))
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "AccessDenied" {
		t.Fatalf("err = %v, want wrapped AccessDenied", err)
	}
}

func TestS3InvalidName(t *testing.T) {
	st := NewS3(newFakeS3(), "bucket", "")
	if _, err := st.Get(context.Background(), "../x"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("err = %v, want ErrInvalidName", err)
	}
}

func TestIsS3NotFound(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&apiError{code: "NoSuchKey"}, true},
		{&apiError{code: "NotFound"}, true},
		{&apiError{code: "AccessDenied"}, false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := isS3NotFound(tt.err); got != tt.want {
			t.Errorf("isS3NotFound(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
