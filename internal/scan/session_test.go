package scan

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAnalyzer blocks every request until release is closed.
type fakeAnalyzer struct {
	calls   atomic.Int32
	release chan struct{}
	result  *Result
	err     error
	gotCrop atomic.Value
}

func newFakeAnalyzer(result *Result, err error) *fakeAnalyzer {
	return &fakeAnalyzer{release: make(chan struct{}), result: result, err: err}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, img Image, cropType string) (*Result, error) {
	f.calls.Add(1)
	f.gotCrop.Store(cropType)
	<-f.release
	return f.result, f.err
}

func leafBlight() *Result {
	return &Result{
		Disease:     "Leaf Blight",
		Confidence:  94,
		Severity:    SeverityMedium,
		Description: "...",
		Suggestions: []string{"..."},
		Products:    []Product{},
	}
}

func jpegImage() Image {
	return Image{Name: "leaf.jpg", MediaType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff, 0xe0}}
}

func waitFor(t *testing.T, s *Session) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := s.Wait(ctx)
	require.NoError(t, err)
	return snap
}

func assertExclusive(t *testing.T, snap Snapshot) {
	t.Helper()
	assert.False(t, snap.Result != nil && snap.Error != "", "result and error set together")
	if snap.Result != nil || snap.Error != "" {
		assert.NotNil(t, snap.Image, "result or error without an image")
	}
}

func TestSelectAnalyzeSucceeds(t *testing.T) {
	fa := newFakeAnalyzer(leafBlight(), nil)
	s := NewSession(fa)

	require.True(t, s.ProvideImage(jpegImage()))
	snap := s.Snapshot()
	assert.Equal(t, StatusImageSelected, snap.Status)
	require.NotNil(t, snap.Image)
	assert.Equal(t, "image/jpeg", snap.Image.MediaType)
	assert.Equal(t, jpegImage().Data, snap.Image.Data)

	require.True(t, s.Analyze(context.Background()))
	assert.Equal(t, StatusAnalyzing, s.Status())

	close(fa.release)
	snap = waitFor(t, s)

	assert.Equal(t, StatusResultReady, snap.Status)
	assert.Equal(t, leafBlight(), snap.Result)
	assert.Empty(t, snap.Error)
	assertExclusive(t, snap)
}

func TestAnalyzeFailureStoresMessage(t *testing.T) {
	fa := newFakeAnalyzer(nil, errors.New("model unavailable"))
	s := NewSession(fa)

	require.True(t, s.ProvideImage(jpegImage()))
	require.True(t, s.Analyze(context.Background()))
	close(fa.release)
	snap := waitFor(t, s)

	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "model unavailable", snap.Error)
	assert.Nil(t, snap.Result)
	assertExclusive(t, snap)
}

func TestResetFromResultReady(t *testing.T) {
	fa := newFakeAnalyzer(leafBlight(), nil)
	close(fa.release)
	s := NewSession(fa)

	require.True(t, s.ProvideImage(jpegImage()))
	require.True(t, s.Analyze(context.Background()))
	waitFor(t, s)

	require.NoError(t, s.Reset())
	snap := s.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Nil(t, snap.Image)
	assert.Nil(t, snap.Result)
	assert.Empty(t, snap.Error)
	assert.Empty(t, snap.Preview)
}

func TestAnalyzeWhileAnalyzingIsIgnored(t *testing.T) {
	fa := newFakeAnalyzer(leafBlight(), nil)
	s := NewSession(fa)

	require.True(t, s.ProvideImage(jpegImage()))
	require.True(t, s.Analyze(context.Background()))
	assert.False(t, s.Analyze(context.Background()))
	assert.False(t, s.Analyze(context.Background()))
	assert.Equal(t, StatusAnalyzing, s.Status())

	close(fa.release)
	snap := waitFor(t, s)
	assert.Equal(t, StatusResultReady, snap.Status)
	assert.EqualValues(t, 1, fa.calls.Load())
}

func TestAnalyzeOnlyFromImageSelected(t *testing.T) {
	fa := newFakeAnalyzer(leafBlight(), nil)
	close(fa.release)
	s := NewSession(fa)

	assert.False(t, s.Analyze(context.Background()), "idle session must not analyze")

	require.True(t, s.ProvideImage(jpegImage()))
	require.True(t, s.Analyze(context.Background()))
	waitFor(t, s)

	assert.False(t, s.Analyze(context.Background()), "result must be reset before analyzing again")
	assert.EqualValues(t, 1, fa.calls.Load())
}

func TestNonImageSelectionIsIgnored(t *testing.T) {
	s := NewSession(newFakeAnalyzer(nil, nil))

	tests := []Image{
		{Name: "notes.txt", MediaType: "text/plain", Data: []byte("hi")},
		{Name: "doc.pdf", MediaType: "application/pdf"},
		{Name: "blank"},
	}
	for _, img := range tests {
		assert.False(t, s.ProvideImage(img), img.Name)
		assert.Equal(t, StatusIdle, s.Status())
	}

	require.True(t, s.ProvideImage(jpegImage()))
	assert.False(t, s.ProvideImage(Image{Name: "x.txt", MediaType: "text/plain"}))
	snap := s.Snapshot()
	assert.Equal(t, StatusImageSelected, snap.Status)
	assert.Equal(t, "leaf.jpg", snap.Image.Name)
}

func TestProvideImageReplacesImageAndPreview(t *testing.T) {
	var previews atomic.Int32
	s := NewSession(newFakeAnalyzer(nil, nil), WithPreviewer(PreviewFunc(func(img Image) (string, error) {
		previews.Add(1)
		return "preview:" + img.Name, nil
	})))

	require.True(t, s.ProvideImage(jpegImage()))
	require.True(t, s.ProvideImage(Image{Name: "second.png", MediaType: "image/png", Data: []byte{1}}))

	snap := s.Snapshot()
	assert.Equal(t, StatusImageSelected, snap.Status)
	assert.Equal(t, "second.png", snap.Image.Name)
	assert.Equal(t, "preview:second.png", snap.Preview)
	assert.EqualValues(t, 2, previews.Load())
}

func TestProvideImageAfterFailureClearsError(t *testing.T) {
	fa := newFakeAnalyzer(nil, errors.New("boom"))
	close(fa.release)
	s := NewSession(fa)

	require.True(t, s.ProvideImage(jpegImage()))
	require.True(t, s.Analyze(context.Background()))
	require.Equal(t, StatusFailed, waitFor(t, s).Status)

	require.True(t, s.ProvideImage(Image{Name: "retry.png", MediaType: "image/png", Data: []byte{2}}))
	snap := s.Snapshot()
	assert.Equal(t, StatusImageSelected, snap.Status)
	assert.Empty(t, snap.Error)
	assert.Nil(t, snap.Result)
	assert.Equal(t, "retry.png", snap.Image.Name)
}

func TestProvideImageWhileAnalyzingIsIgnored(t *testing.T) {
	fa := newFakeAnalyzer(leafBlight(), nil)
	s := NewSession(fa)

	require.True(t, s.ProvideImage(jpegImage()))
	require.True(t, s.Analyze(context.Background()))
	assert.False(t, s.ProvideImage(Image{Name: "late.png", MediaType: "image/png"}))

	close(fa.release)
	snap := waitFor(t, s)
	assert.Equal(t, "leaf.jpg", snap.Image.Name)
}

func TestResetIsIdempotentWhenIdle(t *testing.T) {
	s := NewSession(newFakeAnalyzer(nil, nil))

	require.NoError(t, s.Reset())
	require.NoError(t, s.Reset())

	snap := s.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Nil(t, snap.Image)
	assert.Nil(t, snap.Result)
	assert.Empty(t, snap.Error)
}

func TestResetWhileAnalyzingIsRejected(t *testing.T) {
	fa := newFakeAnalyzer(leafBlight(), nil)
	s := NewSession(fa)

	require.True(t, s.ProvideImage(jpegImage()))
	require.True(t, s.Analyze(context.Background()))

	assert.ErrorIs(t, s.Reset(), ErrAnalyzing)
	assert.Equal(t, StatusAnalyzing, s.Status())

	close(fa.release)
	assert.Equal(t, StatusResultReady, waitFor(t, s).Status)
}

func TestOutOfRangeConfidenceFails(t *testing.T) {
	for _, confidence := range []float64{-1, 100.5, 140} {
		bad := leafBlight()
		bad.Confidence = confidence
		fa := newFakeAnalyzer(bad, nil)
		close(fa.release)
		s := NewSession(fa)

		require.True(t, s.ProvideImage(jpegImage()))
		require.True(t, s.Analyze(context.Background()))
		snap := waitFor(t, s)

		assert.Equal(t, StatusFailed, snap.Status, "confidence %v", confidence)
		assert.Nil(t, snap.Result)
		assert.Contains(t, snap.Error, "confidence")
	}
}

func TestCropTypeIsForwarded(t *testing.T) {
	fa := newFakeAnalyzer(leafBlight(), nil)
	close(fa.release)
	s := NewSession(fa, WithCropType("apple"))
	s.SetCropType("tomato")

	require.True(t, s.ProvideImage(jpegImage()))
	require.True(t, s.Analyze(context.Background()))
	waitFor(t, s)

	assert.Equal(t, "tomato", fa.gotCrop.Load())
}

func TestCancelledContextDoesNotAbortRequest(t *testing.T) {
	fa := newFakeAnalyzer(leafBlight(), nil)
	s := NewSession(fa)

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, s.ProvideImage(jpegImage()))
	require.True(t, s.Analyze(ctx))
	cancel()

	close(fa.release)
	assert.Equal(t, StatusResultReady, waitFor(t, s).Status)
}

func TestTimeoutFailsSession(t *testing.T) {
	s := NewSession(AnalyzerFunc(func(ctx context.Context, img Image, cropType string) (*Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), WithTimeout(20*time.Millisecond))

	require.True(t, s.ProvideImage(jpegImage()))
	require.True(t, s.Analyze(context.Background()))
	snap := waitFor(t, s)

	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), snap.Error)
}

func TestCloseDiscardsLateResponse(t *testing.T) {
	fa := newFakeAnalyzer(leafBlight(), nil)
	s := NewSession(fa)

	require.True(t, s.ProvideImage(jpegImage()))
	require.True(t, s.Analyze(context.Background()))
	s.Close()
	assert.Equal(t, StatusIdle, s.Status())

	close(fa.release)
	snap := waitFor(t, s)
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Nil(t, snap.Result)
	assert.False(t, s.ProvideImage(jpegImage()))
}

func TestWaitHonoursContext(t *testing.T) {
	fa := newFakeAnalyzer(leafBlight(), nil)
	s := NewSession(fa)

	require.True(t, s.ProvideImage(jpegImage()))
	require.True(t, s.Analyze(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	snap, err := s.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StatusAnalyzing, snap.Status)

	close(fa.release)
	waitFor(t, s)
}

func TestSnapshotIsACopy(t *testing.T) {
	fa := newFakeAnalyzer(leafBlight(), nil)
	close(fa.release)
	s := NewSession(fa)

	require.True(t, s.ProvideImage(jpegImage()))
	require.True(t, s.Analyze(context.Background()))
	snap := waitFor(t, s)

	snap.Result.Suggestions[0] = "changed"
	snap.Image.Data[0] = 0
	again := s.Snapshot()
	assert.Equal(t, "...", again.Result.Suggestions[0])
	assert.Equal(t, byte(0xff), again.Image.Data[0])
}

func TestDefaultPreviewIsDataURL(t *testing.T) {
	s := NewSession(newFakeAnalyzer(nil, nil))
	require.True(t, s.ProvideImage(Image{Name: "a.png", MediaType: "image/png", Data: []byte("abc")}))
	assert.Equal(t, "data:image/png;base64,YWJj", s.Snapshot().Preview)
}

func TestAnalyzerPanicFailsSession(t *testing.T) {
	analyzer := AnalyzerFunc(func(ctx context.Context, img Image, cropType string) (*Result, error) {
		panic("nil model handle")
	})
	s := NewSession(analyzer)
	require.True(t, s.ProvideImage(jpegImage()))
	require.True(t, s.Analyze(context.Background()))

	snap := waitFor(t, s)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "analysis failed: internal error", snap.Error)
	assert.NotContains(t, snap.Error, "nil model handle")
	assert.Nil(t, snap.Result)
	assertExclusive(t, snap)
}
