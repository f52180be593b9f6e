package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/desadigital/citizen-assistant/internal/core/domain"
)

type fakeDocumentRepo struct {
	created       *domain.Document
	doc           *domain.Document
	createErr     error
	getErr        error
	statusErr     error
	statusHistory []domain.DocumentStatus
	lastErrMsg    string
}

func (f *fakeDocumentRepo) Create(ctx context.Context, doc *domain.Document) error {
	f.created = doc
	return f.createErr
}

func (f *fakeDocumentRepo) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.doc, nil
}

func (f *fakeDocumentRepo) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	f.statusHistory = append(f.statusHistory, status)
	f.lastErrMsg = errMessage
	return f.statusErr
}

type fakeStorage struct {
	saved map[string][]byte
	err   error
}

func (f *fakeStorage) Save(ctx context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[key] = raw
	return nil
}

func (f *fakeStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.saved[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

type fakeQueue struct {
	published []string
	err       error
}

func (f *fakeQueue) PublishDocumentIngested(ctx context.Context, documentID string) error {
	f.published = append(f.published, documentID)
	return f.err
}

func (f *fakeQueue) SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error {
	return nil
}

func TestUploadStoresCreatesAndPublishes(t *testing.T) {
	repo := &fakeDocumentRepo{}
	storage := &fakeStorage{}
	queue := &fakeQueue{}
	uc := NewIngestDocumentUseCase(repo, storage, queue)

	doc, err := uc.Upload(context.Background(), "desa-001", "Perdes No 3.pdf", "application/pdf",
		strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if doc.Status != domain.StatusUploaded {
		t.Fatalf("status = %s, want uploaded", doc.Status)
	}
	if doc.VillageID != "desa-001" {
		t.Fatalf("village = %q", doc.VillageID)
	}
	if doc.Title != "Perdes No 3" {
		t.Fatalf("title = %q", doc.Title)
	}
	if repo.created == nil || repo.created.ID != doc.ID {
		t.Fatalf("document metadata not persisted")
	}
	if len(storage.saved) != 1 {
		t.Fatalf("expected one stored object, got %d", len(storage.saved))
	}
	if _, ok := storage.saved[doc.StoragePath]; !ok {
		t.Fatalf("storage key %q does not match the persisted path", doc.StoragePath)
	}
	if strings.ContainsAny(doc.StoragePath, " /") {
		t.Fatalf("storage key should be sanitized, got %q", doc.StoragePath)
	}
	if len(queue.published) != 1 || queue.published[0] != doc.ID {
		t.Fatalf("published = %v", queue.published)
	}
}

func TestUploadRequiresVillageID(t *testing.T) {
	uc := NewIngestDocumentUseCase(&fakeDocumentRepo{}, &fakeStorage{}, &fakeQueue{})

	_, err := uc.Upload(context.Background(), "  ", "a.txt", "text/plain", strings.NewReader("x"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestUploadStopsOnStorageFailure(t *testing.T) {
	repo := &fakeDocumentRepo{}
	queue := &fakeQueue{}
	uc := NewIngestDocumentUseCase(repo, &fakeStorage{err: errors.New("disk full")}, queue)

	_, err := uc.Upload(context.Background(), "desa-001", "a.txt", "text/plain", strings.NewReader("x"))
	if err == nil {
		t.Fatalf("expected storage failure to surface")
	}
	if repo.created != nil || len(queue.published) != 0 {
		t.Fatalf("failed upload must not create metadata or publish events")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Perdes No 3.pdf", "Perdes_No_3.pdf"},
		{"../../etc/passwd", "passwd"},
		{"surat (final).docx", "surat__final_.docx"},
		{"", "document.bin"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
