package tool

import (
	"context"
	"testing"
	"time"

	contractx "github.com/norasett/attache/agent/contract"
)

func fastRetry(max int) RetryConfig {
	return RetryConfig{
		MaxRetries:   max,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Factor:       2,
	}
}

func countingExec(failures int) (Executor, *int) {
	calls := new(int)
	return func(_ context.Context, call contractx.ToolCall) contractx.ToolResult {
		*calls++
		if *calls <= failures {
			return contractx.ErrorResult(call, "transient")
		}
		return contractx.OKResult(call, "fine")
	}, calls
}

func readOnlySpec() Spec {
	return Spec{Name: "probe", Effect: EffectReadOnly}
}

func mutatingSpec() Spec {
	return Spec{Name: "commit", Effect: EffectMutating}
}

func TestInvokeSuccessNoRetry(t *testing.T) {
	t.Parallel()

	exec, calls := countingExec(0)
	res := Invoke(context.Background(), readOnlySpec(), exec, contractx.ToolCall{ID: "c1", Name: "probe"}, fastRetry(3))
	if res.Status != contractx.ToolStatusOK {
		t.Fatalf("result = %+v", res)
	}
	if *calls != 1 {
		t.Fatalf("calls = %d, want 1", *calls)
	}
}

func TestInvokeReadOnlyRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	exec, calls := countingExec(2)
	res := Invoke(context.Background(), readOnlySpec(), exec, contractx.ToolCall{ID: "c1", Name: "probe"}, fastRetry(3))
	if res.Status != contractx.ToolStatusOK {
		t.Fatalf("result = %+v", res)
	}
	if *calls != 3 {
		t.Fatalf("calls = %d, want 3", *calls)
	}
}

func TestInvokeReadOnlyRetryBudgetExhausted(t *testing.T) {
	t.Parallel()

	exec, calls := countingExec(10)
	res := Invoke(context.Background(), readOnlySpec(), exec, contractx.ToolCall{ID: "c1", Name: "probe"}, fastRetry(2))
	if res.Status != contractx.ToolStatusError {
		t.Fatalf("result = %+v", res)
	}
	// Initial call plus the full retry budget.
	if *calls != 3 {
		t.Fatalf("calls = %d, want 3", *calls)
	}
}

func TestInvokeMutatingNeverRetried(t *testing.T) {
	t.Parallel()

	exec, calls := countingExec(10)
	res := Invoke(context.Background(), mutatingSpec(), exec, contractx.ToolCall{ID: "c1", Name: "commit"}, fastRetry(5))
	if res.Status != contractx.ToolStatusError {
		t.Fatalf("result = %+v", res)
	}
	if *calls != 1 {
		t.Fatalf("mutating calls = %d, want exactly 1", *calls)
	}
}

func TestInvokeStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec, calls := countingExec(10)
	cfg := RetryConfig{MaxRetries: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, Factor: 2}
	res := Invoke(ctx, readOnlySpec(), exec, contractx.ToolCall{ID: "c1", Name: "probe"}, cfg)
	if res.Status != contractx.ToolStatusError {
		t.Fatalf("result = %+v", res)
	}
	if *calls != 1 {
		t.Fatalf("calls = %d, cancelled context must stop retries", *calls)
	}
}

func TestRetryConfigSanitized(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{MaxRetries: -3, InitialDelay: -1, MaxDelay: 0, Factor: 0}.sanitized()
	if cfg.MaxRetries != 0 {
		t.Fatalf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.InitialDelay <= 0 || cfg.MaxDelay <= 0 || cfg.Factor < 1 {
		t.Fatalf("sanitized = %+v", cfg)
	}
}
