package llmport

import "context"

// Fake is a scriptable Chat implementation for tests: each call to Chat
// consumes the next entry of Responses (or the last one, if exhausted), or
// returns Err if set.
type Fake struct {
	Responses []string
	Err       error
	calls     int
	Name      string
}

func (f *Fake) ModelName() string {
	if f.Name == "" {
		return "fake-model"
	}
	return f.Name
}

func (f *Fake) Chat(_ context.Context, _ []Message, _ *Options) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Responses) == 0 {
		return "", nil
	}
	idx := f.calls
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	}
	f.calls++
	return f.Responses[idx], nil
}
