package capability

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLifecycle_InitializeOnce(t *testing.T) {
	var calls int32
	l := NewLifecycle("test", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	if l.IsInitialized() {
		t.Error("Expected lifecycle to be uninitialized before Initialize")
	}

	if err := l.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if !l.IsInitialized() {
		t.Error("Expected lifecycle to be initialized after Initialize")
	}

	if err := l.Initialize(context.Background()); err != nil {
		t.Fatalf("Second Initialize failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected init to run once, ran %d times", calls)
	}
}

func TestLifecycle_ConcurrentInitialize(t *testing.T) {
	var calls int32
	l := NewLifecycle("test", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Initialize(context.Background())
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("Expected init to run once under concurrency, ran %d times", calls)
	}
}

func TestLifecycle_FailureIsSticky(t *testing.T) {
	var calls int32
	l := NewLifecycle("test", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("model missing")
	})

	err := l.Initialize(context.Background())
	if err == nil {
		t.Fatal("Expected initialization error")
	}
	if KindOf(err) != KindProviderUnavailable {
		t.Errorf("Expected KindProviderUnavailable, got %s", KindOf(err))
	}

	if err2 := l.Initialize(context.Background()); err2 == nil {
		t.Error("Expected sticky failure on second Initialize")
	}
	if calls != 1 {
		t.Errorf("Expected init to run once, ran %d times", calls)
	}

	state, _ := l.State()
	if state != StateFailed {
		t.Errorf("Expected StateFailed, got %s", state)
	}
}

func TestLifecycle_DisabledFromInit(t *testing.T) {
	l := NewLifecycle("ocr", func(ctx context.Context) error {
		return Disabled("ocr", "OCR API key not configured")
	})

	err := l.Initialize(context.Background())
	if KindOf(err) != KindDisabled {
		t.Errorf("Expected KindDisabled, got %s", KindOf(err))
	}
	state, _ := l.State()
	if state != StateDisabled {
		t.Errorf("Expected StateDisabled, got %s", state)
	}
}

func TestLifecycle_SetupOutlivesCancelledCaller(t *testing.T) {
	l := NewLifecycle("tts", func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Initialize(ctx); err != nil {
		t.Fatalf("Expected setup to finish despite the cancelled caller, got %v", err)
	}
	if !l.IsInitialized() {
		t.Error("Expected lifecycle to be ready")
	}
}

func TestLifecycle_CancelledCallerDoesNotStickFailure(t *testing.T) {
	var calls int32
	l := NewLifecycle("tts", func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("dial tcp: connection reset")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Initialize(ctx)
	if KindOf(err) != KindProviderUnavailable {
		t.Errorf("Expected KindProviderUnavailable, got %s", KindOf(err))
	}
	if state, stored := l.State(); state != StateUninitialized || stored != nil {
		t.Errorf("Expected uninitialized with no stored error, got %s (%v)", state, stored)
	}

	if err := l.Initialize(context.Background()); err != nil {
		t.Fatalf("Expected the next caller to initialize, got %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected setup to run twice, ran %d times", calls)
	}
}

func TestLifecycle_InitTimeoutIsSticky(t *testing.T) {
	l := NewLifecycle("llm", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}).WithInitTimeout(20 * time.Millisecond)

	err := l.Initialize(context.Background())
	if KindOf(err) != KindProviderUnavailable {
		t.Errorf("Expected KindProviderUnavailable, got %s", KindOf(err))
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded cause, got %v", err)
	}
	if state, _ := l.State(); state != StateFailed {
		t.Errorf("Expected StateFailed, got %s", state)
	}
}

func TestLifecycle_Disabled(t *testing.T) {
	l := NewDisabledLifecycle("translation", "temporarily disabled")

	err := l.Initialize(context.Background())
	if KindOf(err) != KindDisabled {
		t.Errorf("Expected KindDisabled, got %s", KindOf(err))
	}
	if l.IsInitialized() {
		t.Error("Expected disabled lifecycle to report not initialized")
	}
}

func TestError_Details(t *testing.T) {
	cause := errors.New("401 invalid api key")
	err := ProviderFailure("summarization", "summarization failed", cause)

	var capErr *Error
	if !errors.As(err, &capErr) {
		t.Fatal("Expected *Error")
	}
	if capErr.Details() != "401 invalid api key" {
		t.Errorf("Unexpected details '%s'", capErr.Details())
	}
	if !errors.Is(err, cause) {
		t.Error("Expected error to unwrap to cause")
	}
	if IsClientError(err) {
		t.Error("Provider failure must not be a client error")
	}
	if !IsClientError(Validation("tts", "text cannot be empty")) {
		t.Error("Validation must be a client error")
	}
}

type fakeService struct {
	*Lifecycle
	info Info
}

func (f *fakeService) Info() Info { return f.info }

func TestRegistry_Statuses(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeService{Lifecycle: NewLifecycle(TTS, nil), info: Info{Provider: "local"}})
	r.Register(&fakeService{Lifecycle: NewDisabledLifecycle(Translation, "off"), info: Info{}})

	statuses := r.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("Expected 2 statuses, got %d", len(statuses))
	}
	if statuses[TTS].Loaded {
		t.Error("Expected tts not loaded before initialization")
	}

	failures := r.InitializeAll(context.Background())
	if _, ok := failures[Translation]; !ok {
		t.Error("Expected translation initialization failure")
	}

	statuses = r.Statuses()
	if !statuses[TTS].Loaded {
		t.Error("Expected tts loaded after InitializeAll")
	}
	if statuses[Translation].State != "disabled" {
		t.Errorf("Expected translation state 'disabled', got '%s'", statuses[Translation].State)
	}
}

func TestCall_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"provider answer", errors.New("status code: 401, invalid api key"), KindProvider},
		{"network", errors.New("dial tcp: connection refused"), KindProviderUnavailable},
		{"deadline", context.DeadlineExceeded, KindProviderUnavailable},
		{"typed passthrough", Validation(OCR, "invalid base64 image"), KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Call(context.Background(), OCR, "text extraction failed", nil, func(ctx context.Context) error {
				return tt.err
			})
			if KindOf(err) != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, KindOf(err))
			}
		})
	}

	if err := Call(context.Background(), OCR, "x", nil, func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}
