package transport

import "testing"

func TestResultFailure(t *testing.T) {
	tests := []struct {
		name string
		res  *Result
		want string
	}{
		{"nil", nil, "empty transport result"},
		{"code", &Result{StatusCode: 400}, "status code: 400"},
		{"detail", &Result{StatusCode: 550, Detail: "mailbox unavailable"}, "status code: 550: mailbox unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Failure(); got != tt.want {
				t.Errorf("Failure() = %q, want %q", got, tt.want)
			}
			if tt.res.Accepted() {
				t.Error("Accepted() = true, want false")
			}
		})
	}
}
