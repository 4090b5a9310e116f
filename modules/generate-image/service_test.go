package generateimage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promo-studio-server/modules/common/apperror"
	"promo-studio-server/modules/common/cache"
	"promo-studio-server/modules/common/catalog"
	"promo-studio-server/modules/common/config"
	"promo-studio-server/modules/common/credit"
	"promo-studio-server/modules/common/gateway"
	"promo-studio-server/modules/common/model"
)

// 1x1 PNG
const pixelDataURI = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mP8/x8AAwMB/6X+ZQAAAABJRU5ErkJggg=="

type fakeRepo struct {
	mu         sync.Mutex
	credits    int
	getErr     error
	insertErr  error
	categories map[string]string
	modelTypes map[string]string
	inserted   []model.GeneratedImage
}

func (f *fakeRepo) GetCredits(ctx context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return 0, f.getErr
	}
	return f.credits, nil
}

func (f *fakeRepo) CompareAndSetCredits(ctx context.Context, userID string, expected, next int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.credits != expected {
		return false, nil
	}
	f.credits = next
	return true, nil
}

func (f *fakeRepo) SetCredits(ctx context.Context, userID string, credits int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credits = credits
	return nil
}

func (f *fakeRepo) FindCategoryID(ctx context.Context, name string) (*string, error) {
	return lookup(f.categories, name), nil
}

func (f *fakeRepo) FindModelTypeID(ctx context.Context, name string) (*string, error) {
	return lookup(f.modelTypes, name), nil
}

func lookup(m map[string]string, name string) *string {
	if id, ok := m[name]; ok {
		return &id
	}
	return nil
}

func (f *fakeRepo) InsertGeneratedImage(ctx context.Context, img model.GeneratedImage) (*model.GeneratedImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	img.ID = fmt.Sprintf("img-%d", len(f.inserted)+1)
	f.inserted = append(f.inserted, img)
	return &img, nil
}

func (f *fakeRepo) balance() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.credits
}

type fakeStore struct {
	objects     map[string][]byte
	types       map[string]string
	uploadErr   error
	signErr     error
	downloadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeStore) Upload(ctx context.Context, bucket, objectPath string, data []byte, contentType string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.objects[bucket+"/"+objectPath] = data
	f.types[bucket+"/"+objectPath] = contentType
	return nil
}

func (f *fakeStore) Download(ctx context.Context, bucket, objectPath string) ([]byte, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	data, ok := f.objects[bucket+"/"+objectPath]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (f *fakeStore) SignedURL(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return fmt.Sprintf("https://signed.example/%s/%s?ttl=%d", bucket, objectPath, int(ttl.Seconds())), nil
}

type fakeAI struct {
	result      string
	err         error
	calls       int
	gotPrompt   string
	gotImageURL string
}

func (f *fakeAI) GenerateImage(ctx context.Context, prompt, imageURL string) (string, error) {
	f.calls++
	f.gotPrompt = prompt
	f.gotImageURL = imageURL
	return f.result, f.err
}

func (f *fakeAI) DescribeImage(ctx context.Context, prompt, imageURL string) (string, error) {
	return "", errors.New("not used")
}

type publishedEvent struct {
	userID    string
	eventType string
	payload   interface{}
}

type fakePublisher struct {
	events []publishedEvent
}

func (f *fakePublisher) Publish(userID, eventType string, payload interface{}) {
	f.events = append(f.events, publishedEvent{userID, eventType, payload})
}

type fixture struct {
	repo      *fakeRepo
	sources   *fakeStore
	store     *fakeStore
	ai        *fakeAI
	publisher *fakePublisher
	service   *Service
	repoCalls int
}

func newFixture(mode string, credits int) *fixture {
	f := &fixture{
		repo: &fakeRepo{
			credits:    credits,
			categories: map[string]string{"Fashion": "cat-fashion", "Food": "cat-food"},
			modelTypes: map[string]string{"Female": "mt-female"},
		},
		sources:   newFakeStore(),
		store:     newFakeStore(),
		ai:        &fakeAI{result: pixelDataURI},
		publisher: &fakePublisher{},
	}
	repos := func(token string) (Repository, error) {
		f.repoCalls++
		return f.repo, nil
	}
	f.service = NewService(repos, f.sources, f.store, f.ai,
		credit.NewLedger(mode), catalog.NewResolver(cache.Noop{}, time.Hour), f.publisher,
		Options{Bucket: "generated-images", URLTTL: 7 * 24 * time.Hour, Format: config.FormatPNG, WebPQuality: 90})
	f.service.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return f
}

func fashionRequest() GenerateRequest {
	return GenerateRequest{
		ProductImageURL: "https://cdn.example/product.png",
		CategoryName:    "Fashion",
		ModelTypeName:   "Female",
	}
}

func TestGenerate_Success(t *testing.T) {
	for _, mode := range []string{config.CreditModeReserve, config.CreditModeDeferred} {
		t.Run(mode, func(t *testing.T) {
			f := newFixture(mode, 3)

			resp, err := f.service.Generate(context.Background(), "user-1", "token", fashionRequest())
			require.NoError(t, err)

			assert.True(t, resp.Success)
			assert.Equal(t, 2, resp.CreditsRemaining)
			assert.Equal(t, 2, f.repo.balance())
			assert.Equal(t, "https://signed.example/generated-images/user-1/1700000000000-generated.png?ttl=604800", resp.ImageURL)

			require.Contains(t, f.store.objects, "generated-images/user-1/1700000000000-generated.png")
			assert.Equal(t, "image/png", f.store.types["generated-images/user-1/1700000000000-generated.png"])

			require.Len(t, f.repo.inserted, 1)
			row := f.repo.inserted[0]
			assert.Equal(t, "user-1", row.UserID)
			assert.Equal(t, "https://cdn.example/product.png", row.OriginalImageURL)
			assert.Equal(t, resp.ImageURL, row.GeneratedImageURL)
			require.NotNil(t, row.BusinessCategoryID)
			assert.Equal(t, "cat-fashion", *row.BusinessCategoryID)
			require.NotNil(t, row.ModelTypeID)
			assert.Equal(t, "mt-female", *row.ModelTypeID)

			assert.Contains(t, f.ai.gotPrompt, "Fashion product")
			assert.Contains(t, f.ai.gotPrompt, "female model")

			require.Len(t, f.publisher.events, 2)
			assert.Equal(t, "image.generated", f.publisher.events[0].eventType)
			assert.Equal(t, CreditsPayload{Credits: 2}, f.publisher.events[1].payload)
		})
	}
}

func TestGenerate_InsufficientCredits(t *testing.T) {
	for _, credits := range []int{0, -1} {
		f := newFixture(config.CreditModeReserve, credits)

		_, err := f.service.Generate(context.Background(), "user-1", "token", fashionRequest())
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindInsufficientCredits))

		status, msg := apperror.StatusAndMessage(err)
		assert.Equal(t, 400, status)
		assert.Equal(t, "Insufficient credits", msg)

		assert.Equal(t, credits, f.repo.balance())
		assert.Empty(t, f.repo.inserted)
		assert.Zero(t, f.ai.calls)
		assert.Empty(t, f.publisher.events)
	}
}

func TestGenerate_CreditsFetchFailed(t *testing.T) {
	f := newFixture(config.CreditModeReserve, 3)
	f.repo.getErr = errors.New("connection refused")

	_, err := f.service.Generate(context.Background(), "user-1", "token", fashionRequest())
	_, msg := apperror.StatusAndMessage(err)
	assert.Equal(t, "Failed to fetch credits", msg)
	assert.Zero(t, f.ai.calls)
}

func TestGenerate_FailuresRefundReservedCredit(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture)
		wantMsg string
	}{
		{
			name:    "gateway status",
			setup:   func(f *fixture) { f.ai.err = &gateway.StatusError{StatusCode: 402, Body: "payment required"} },
			wantMsg: "AI generation failed: 402",
		},
		{
			name:    "no image",
			setup:   func(f *fixture) { f.ai.err = gateway.ErrNoImage },
			wantMsg: "No image generated from AI",
		},
		{
			name:    "undecodable payload",
			setup:   func(f *fixture) { f.ai.result = "data:image/png;base64,%%%" },
			wantMsg: "No image generated from AI",
		},
		{
			name:    "non-image payload",
			setup:   func(f *fixture) { f.ai.result = "data:application/octet-stream;base64,aGVsbG8gd29ybGQ=" },
			wantMsg: "No image generated from AI",
		},
		{
			name:    "upload",
			setup:   func(f *fixture) { f.store.uploadErr = errors.New("bucket missing") },
			wantMsg: "Failed to upload generated image",
		},
		{
			name:    "sign",
			setup:   func(f *fixture) { f.store.signErr = errors.New("denied") },
			wantMsg: "Failed to create signed URL",
		},
		{
			name:    "insert",
			setup:   func(f *fixture) { f.repo.insertErr = errors.New("rls violation") },
			wantMsg: "Failed to save image record",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(config.CreditModeReserve, 3)
			tt.setup(f)

			_, err := f.service.Generate(context.Background(), "user-1", "token", fashionRequest())
			require.Error(t, err)

			status, msg := apperror.StatusAndMessage(err)
			assert.Equal(t, 500, status)
			assert.Equal(t, tt.wantMsg, msg)
			assert.Equal(t, 3, f.repo.balance(), "reserved credit must be refunded")
			assert.Empty(t, f.publisher.events)
		})
	}
}

func TestGenerate_OctetStreamImageUploadsAsDetectedType(t *testing.T) {
	f := newFixture(config.CreditModeReserve, 3)
	f.ai.result = "data:application/octet-stream;" + pixelDataURI[len("data:image/png;"):]

	resp, err := f.service.Generate(context.Background(), "user-1", "token", fashionRequest())
	require.NoError(t, err)
	assert.True(t, resp.Success)

	key := "generated-images/user-1/1700000000000-generated.png"
	require.Contains(t, f.store.objects, key)
	assert.Equal(t, "image/png", f.store.types[key])
}

func TestGenerate_DeferredFailureNeverDebits(t *testing.T) {
	f := newFixture(config.CreditModeDeferred, 1)
	f.repo.insertErr = errors.New("rls violation")

	_, err := f.service.Generate(context.Background(), "user-1", "token", fashionRequest())
	require.Error(t, err)
	assert.Equal(t, 1, f.repo.balance())
	// 업로드된 객체는 orphan 으로 남는다
	assert.Len(t, f.store.objects, 1)
}

func TestGenerate_InlinesPrivateProductImage(t *testing.T) {
	f := newFixture(config.CreditModeReserve, 2)
	png := []byte("\x89PNG\r\n\x1a\nrest-of-png")
	f.sources.objects["product-images/user-1/shoe.png"] = png

	req := fashionRequest()
	req.ProductImageURL = "https://project.supabase.co/storage/v1/object/public/product-images/user-1/shoe.png"

	_, err := f.service.Generate(context.Background(), "user-1", "token", req)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(f.ai.gotImageURL, "data:image/png;base64,"))
	// 기록에는 원래 URL 저장
	assert.Equal(t, req.ProductImageURL, f.repo.inserted[0].OriginalImageURL)
}

func TestGenerate_InlineFailureFallsBackToURL(t *testing.T) {
	f := newFixture(config.CreditModeReserve, 2)
	f.sources.downloadErr = errors.New("not found")

	req := fashionRequest()
	req.ProductImageURL = "https://project.supabase.co/storage/v1/object/public/product-images/user-1/missing.png"

	_, err := f.service.Generate(context.Background(), "user-1", "token", req)
	require.NoError(t, err)
	assert.Equal(t, req.ProductImageURL, f.ai.gotImageURL)
}

func TestGenerate_UnknownCatalogNamesStoreNullReferences(t *testing.T) {
	f := newFixture(config.CreditModeReserve, 2)

	_, err := f.service.Generate(context.Background(), "user-1", "token", GenerateRequest{
		ProductImageURL: "https://cdn.example/p.png",
		CategoryName:    "Pet Supplies",
	})
	require.NoError(t, err)
	require.Len(t, f.repo.inserted, 1)
	assert.Nil(t, f.repo.inserted[0].BusinessCategoryID)
	assert.Nil(t, f.repo.inserted[0].ModelTypeID)
	assert.NotContains(t, f.ai.gotPrompt, "model showcasing")
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Jewelry", "Male")
	assert.True(t, strings.HasPrefix(prompt, "Create a professional marketing image for a Jewelry product."))
	assert.Contains(t, prompt, "feature a male model")
	assert.Contains(t, prompt, "Style: commercial photography, professional, high-end marketing material.")
	assert.Equal(t, prompt, BuildPrompt("Jewelry", "Male"))
}
