package socialcaption

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
	"promo-studio-server/modules/common/config"
	"promo-studio-server/modules/common/model"
)

type fakeRepo struct {
	mu        sync.Mutex
	images    []model.CaptionSourceImage
	fetchErr  error
	insertErr error
	inserted  []model.SocialMediaCaption
	gotUserID string
	gotIDs    []string
}

func (f *fakeRepo) FetchImagesByIDs(ctx context.Context, userID string, ids []string) ([]model.CaptionSourceImage, error) {
	f.gotUserID = userID
	f.gotIDs = ids
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.images, nil
}

func (f *fakeRepo) InsertCaption(ctx context.Context, rec model.SocialMediaCaption) (*model.SocialMediaCaption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	rec.ID = fmt.Sprintf("cap-%s", rec.ImageIDs[0])
	f.inserted = append(f.inserted, rec)
	return &rec, nil
}

type fakeStore struct {
	signErr error
}

func (f *fakeStore) Upload(ctx context.Context, bucket, objectPath string, data []byte, contentType string) error {
	return nil
}

func (f *fakeStore) Download(ctx context.Context, bucket, objectPath string) ([]byte, error) {
	return nil, nil
}

func (f *fakeStore) SignedURL(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return fmt.Sprintf("https://signed.example/%s/%s?ttl=%d", bucket, objectPath, int(ttl.Seconds())), nil
}

// fakeAI - 이미지 URL 별로 응답 / 에러 / panic 지정
type fakeAI struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	panics    map[string]bool
	prompts   map[string]string
}

func newFakeAI() *fakeAI {
	return &fakeAI{
		responses: map[string]string{},
		errs:      map[string]error{},
		panics:    map[string]bool{},
		prompts:   map[string]string{},
	}
}

func (f *fakeAI) GenerateImage(ctx context.Context, prompt, imageURL string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeAI) DescribeImage(ctx context.Context, prompt, imageURL string) (string, error) {
	f.mu.Lock()
	f.prompts[imageURL] = prompt
	resp, err, shouldPanic := f.responses[imageURL], f.errs[imageURL], f.panics[imageURL]
	f.mu.Unlock()

	if shouldPanic {
		panic("boom")
	}
	if err != nil {
		return "", err
	}
	if resp == "" {
		return `{"caption":"Default caption.","hashtags":["one","two","three","four","five","six","seven","eight"]}`, nil
	}
	return resp, nil
}

type fakePublisher struct {
	mu    sync.Mutex
	count int
}

func (f *fakePublisher) Publish(userID, eventType string, payload interface{}) {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()
}

func category(name string) *struct {
	Name string `json:"name"`
} {
	return &struct {
		Name string `json:"name"`
	}{Name: name}
}

func newService(repo *fakeRepo, store *fakeStore, ai *fakeAI, supportsColumn bool) *Service {
	return NewService(repo, store, ai, &fakePublisher{}, Options{
		Bucket:                 "generated-images",
		URLTTL:                 time.Hour,
		Concurrency:            2,
		SupportsImageURLColumn: supportsColumn,
	})
}

func TestGenerate_ImgAScenario(t *testing.T) {
	repo := &fakeRepo{images: []model.CaptionSourceImage{
		{ID: "imgA", GeneratedImageURL: "https://cdn.example/imgA.png"},
	}}
	ai := newFakeAI()
	ai.responses["https://cdn.example/imgA.png"] = `{"caption":"Great shoes!","hashtags":["shoes","fashion"]}`

	results, err := newService(repo, &fakeStore{}, ai, true).Generate(context.Background(), "user-1", []string{"imgA"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "https://cdn.example/imgA.png", results[0].ImageURL)
	assert.Equal(t, "Great shoes!", results[0].Caption)
	assert.Equal(t, []string{"shoes", "fashion"}, results[0].Hashtags)
	require.NotNil(t, results[0].CaptionID)
	assert.Equal(t, "cap-imgA", *results[0].CaptionID)

	require.Len(t, repo.inserted, 1)
	row := repo.inserted[0]
	assert.Equal(t, "user-1", row.UserID)
	assert.Equal(t, "shoes fashion", row.Hashtags)
	assert.Equal(t, []string{"imgA"}, row.ImageIDs)
	require.NotNil(t, row.ImageURL)
	assert.Equal(t, "https://cdn.example/imgA.png", *row.ImageURL)
	assert.Equal(t, "user-1", repo.gotUserID)
}

func TestGenerate_AllSucceedInRequestOrder(t *testing.T) {
	hashtags := `["a","b","c","d","e","f","g","h","i","j"]`
	repo := &fakeRepo{images: []model.CaptionSourceImage{
		{ID: "img3", GeneratedImageURL: "https://cdn.example/3.png"},
		{ID: "img1", GeneratedImageURL: "https://cdn.example/1.png"},
		{ID: "img2", GeneratedImageURL: "https://cdn.example/2.png"},
	}}
	ai := newFakeAI()
	for i := 1; i <= 3; i++ {
		ai.responses[fmt.Sprintf("https://cdn.example/%d.png", i)] = fmt.Sprintf(`{"caption":"Caption %d","hashtags":%s}`, i, hashtags)
	}

	results, err := newService(repo, &fakeStore{}, ai, true).Generate(context.Background(), "user-1", []string{"img1", "img2", "img3"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("Caption %d", i+1), r.Caption)
		assert.GreaterOrEqual(t, len(r.Hashtags), 8)
		assert.LessOrEqual(t, len(r.Hashtags), 12)
	}
}

func TestGenerate_GatewayErrorIsolatedToItem(t *testing.T) {
	repo := &fakeRepo{images: []model.CaptionSourceImage{
		{ID: "img1", GeneratedImageURL: "https://cdn.example/1.png"},
		{ID: "img2", GeneratedImageURL: "https://cdn.example/2.png"},
		{ID: "img3", GeneratedImageURL: "https://cdn.example/3.png"},
	}}
	ai := newFakeAI()
	ai.errs["https://cdn.example/2.png"] = errors.New("AI gateway returned status 500")

	results, err := newService(repo, &fakeStore{}, ai, true).Generate(context.Background(), "user-1", []string{"img1", "img2", "img3"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "Default caption.", results[0].Caption)
	assert.Equal(t, "Check out our amazing product!", results[1].Caption)
	assert.Equal(t, []string{"marketing", "product", "brandnew"}, results[1].Hashtags)
	assert.Equal(t, "Default caption.", results[2].Caption)
}

func TestGenerate_NoJSONUsesFirstLine(t *testing.T) {
	repo := &fakeRepo{images: []model.CaptionSourceImage{{ID: "img1", GeneratedImageURL: "https://cdn.example/1.png"}}}
	ai := newFakeAI()
	ai.responses["https://cdn.example/1.png"] = "\n  Sunny days call for fresh lemonade.\n#summer"

	results, err := newService(repo, &fakeStore{}, ai, true).Generate(context.Background(), "user-1", []string{"img1"})
	require.NoError(t, err)
	assert.Equal(t, "Sunny days call for fresh lemonade.", results[0].Caption)
	assert.Equal(t, []string{"marketing", "product", "brandnew"}, results[0].Hashtags)
}

func TestGenerate_SchemaMismatchUsesGenericCaption(t *testing.T) {
	repo := &fakeRepo{images: []model.CaptionSourceImage{{ID: "img1", GeneratedImageURL: "https://cdn.example/1.png"}}}
	ai := newFakeAI()
	ai.responses["https://cdn.example/1.png"] = `{"captions":[{"text":"nested shape"}]}`

	results, err := newService(repo, &fakeStore{}, ai, true).Generate(context.Background(), "user-1", []string{"img1"})
	require.NoError(t, err)
	assert.Equal(t, "Check out our amazing product!", results[0].Caption)
}

func TestGenerate_PanicMapsToTaskFallback(t *testing.T) {
	repo := &fakeRepo{images: []model.CaptionSourceImage{
		{ID: "img1", GeneratedImageURL: "https://cdn.example/1.png"},
		{ID: "img2", GeneratedImageURL: "https://cdn.example/2.png"},
	}}
	ai := newFakeAI()
	ai.panics["https://cdn.example/1.png"] = true

	results, err := newService(repo, &fakeStore{}, ai, true).Generate(context.Background(), "user-1", []string{"img1", "img2"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Failed to generate caption. Please try again.", results[0].Caption)
	assert.Equal(t, []string{"error"}, results[0].Hashtags)
	assert.Nil(t, results[0].CaptionID)
	assert.Equal(t, "Default caption.", results[1].Caption)
}

func TestGenerate_ItemErrorFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := &fakeRepo{images: []model.CaptionSourceImage{{ID: "img1", GeneratedImageURL: "https://cdn.example/1.png"}}}

	results, err := newService(repo, &fakeStore{}, newFakeAI(), true).Generate(ctx, "user-1", []string{"img1"})
	require.NoError(t, err)
	assert.Equal(t, "Failed to generate caption for this image. Please try again.", results[0].Caption)
	assert.Equal(t, []string{"error", "retry"}, results[0].Hashtags)
	assert.Equal(t, "https://cdn.example/1.png", results[0].ImageURL)
}

func TestGenerate_ResignsStoragePaths(t *testing.T) {
	repo := &fakeRepo{images: []model.CaptionSourceImage{
		{ID: "img1", GeneratedImageURL: "generated-images/user-1/1700-generated.png", BusinessCategories: category("Bakery")},
	}}
	ai := newFakeAI()

	results, err := newService(repo, &fakeStore{}, ai, true).Generate(context.Background(), "user-1", []string{"img1"})
	require.NoError(t, err)

	signed := "https://signed.example/generated-images/user-1/1700-generated.png?ttl=3600"
	assert.Equal(t, signed, results[0].ImageURL)
	assert.Contains(t, ai.prompts[signed], "for a Bakery business.")
}

func TestGenerate_SigningFailureFallsBackToStoredValue(t *testing.T) {
	repo := &fakeRepo{images: []model.CaptionSourceImage{{ID: "img1", GeneratedImageURL: "user-1/1700-generated.png"}}}

	results, err := newService(repo, &fakeStore{signErr: errors.New("denied")}, newFakeAI(), true).
		Generate(context.Background(), "user-1", []string{"img1"})
	require.NoError(t, err)
	assert.Equal(t, "user-1/1700-generated.png", results[0].ImageURL)
	assert.Equal(t, "Default caption.", results[0].Caption)
}

func TestGenerate_CapabilityFlagControlsInsertShape(t *testing.T) {
	repo := &fakeRepo{images: []model.CaptionSourceImage{{ID: "img1", GeneratedImageURL: "https://cdn.example/1.png"}}}

	_, err := newService(repo, &fakeStore{}, newFakeAI(), false).Generate(context.Background(), "user-1", []string{"img1"})
	require.NoError(t, err)
	require.Len(t, repo.inserted, 1)
	assert.Nil(t, repo.inserted[0].ImageURL)
}

func TestGenerate_InsertFailureStillReturnsCaption(t *testing.T) {
	repo := &fakeRepo{
		images:    []model.CaptionSourceImage{{ID: "img1", GeneratedImageURL: "https://cdn.example/1.png"}},
		insertErr: errors.New("(42501) permission denied"),
	}

	results, err := newService(repo, &fakeStore{}, newFakeAI(), true).Generate(context.Background(), "user-1", []string{"img1"})
	require.NoError(t, err)
	assert.Equal(t, "Default caption.", results[0].Caption)
	assert.Nil(t, results[0].CaptionID)
}

func TestGenerate_FetchFailures(t *testing.T) {
	for name, repo := range map[string]*fakeRepo{
		"query error": {fetchErr: errors.New("timeout")},
		"empty":       {},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := newService(repo, &fakeStore{}, newFakeAI(), true).Generate(context.Background(), "user-1", []string{"x"})
			status, msg := apperror.StatusAndMessage(err)
			assert.Equal(t, 500, status)
			assert.Equal(t, "Failed to fetch images", msg)
		})
	}
}

func TestGenerate_AllDropped(t *testing.T) {
	// 저장 URL 이 비어 있으면 대체 결과도 image_url 이 없어 걸러진다
	repo := &fakeRepo{images: []model.CaptionSourceImage{{ID: "img1"}}}

	_, err := newService(repo, &fakeStore{}, newFakeAI(), true).Generate(context.Background(), "user-1", []string{"img1"})
	_, msg := apperror.StatusAndMessage(err)
	assert.Equal(t, "Failed to generate any captions. Please try again.", msg)
}

func TestOrderByRequest(t *testing.T) {
	images := []model.CaptionSourceImage{{ID: "b"}, {ID: "c"}, {ID: "a"}}
	ordered := orderByRequest(images, []string{"a", "b", "a", "missing"})

	ids := make([]string, 0, len(ordered))
	for _, img := range ordered {
		ids = append(ids, img.ID)
	}
	assert.Equal(t, "a,b,c", strings.Join(ids, ","))
}

type fakeColumnChecker struct {
	supported bool
	err       error
	calls     int
}

func (f *fakeColumnChecker) CheckCaptionImageURLColumn(ctx context.Context) (bool, error) {
	f.calls++
	return f.supported, f.err
}

func TestResolveImageURLSupport(t *testing.T) {
	ctx := context.Background()

	checker := &fakeColumnChecker{supported: true}
	assert.True(t, ResolveImageURLSupport(ctx, &config.Config{CaptionsImageURLColumn: config.ColumnAuto}, checker))
	assert.Equal(t, 1, checker.calls)

	checker = &fakeColumnChecker{supported: true}
	assert.False(t, ResolveImageURLSupport(ctx, &config.Config{CaptionsImageURLColumn: "false"}, checker))
	assert.Zero(t, checker.calls)

	checker = &fakeColumnChecker{err: errors.New("network")}
	assert.False(t, ResolveImageURLSupport(ctx, &config.Config{CaptionsImageURLColumn: config.ColumnAuto}, checker))
}
