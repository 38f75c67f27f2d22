package incremental

import (
	"errors"
	"testing"
)

func TestStatusResult_HasChanges(t *testing.T) {
	tests := []struct {
		name     string
		result   StatusResult
		expected bool
	}{
		{
			name:     "no changes",
			result:   StatusResult{},
			expected: false,
		},
		{
			name: "has modified files",
			result: StatusResult{
				Modified: []string{"file1.txt"},
			},
			expected: true,
		},
		{
			name: "has added files",
			result: StatusResult{
				Added: []string{"file2.txt"},
			},
			expected: true,
		},
		{
			name: "has removed files",
			result: StatusResult{
				Removed: []string{"file3.txt"},
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.HasChanges(); got != tt.expected {
				t.Errorf("HasChanges() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStatusResult_TotalChanges(t *testing.T) {
	tests := []struct {
		name     string
		result   StatusResult
		expected int
	}{
		{
			name:     "no changes",
			result:   StatusResult{},
			expected: 0,
		},
		{
			name: "mixed changes",
			result: StatusResult{
				Modified: []string{"file1.txt"},
				Added:    []string{"file2.txt", "file3.txt"},
				Removed:  []string{"file4.txt"},
			},
			expected: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.TotalChanges(); got != tt.expected {
				t.Errorf("TotalChanges() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	current := buildFingerprint(AbsolutePathStrategy, file("a", "1"), file("b", "changed"), file("c", "3"))
	previous := buildFingerprint(AbsolutePathStrategy, file("b", "2"), file("d", "4"))

	result, err := Status(current, previous, "Input", true, 0)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if result.Title != "Input" {
		t.Errorf("Expected title 'Input', got '%s'", result.Title)
	}
	if len(result.Added) != 2 || len(result.Modified) != 1 || len(result.Removed) != 1 {
		t.Errorf("Unexpected result: %+v", result)
	}
	if len(result.Changes) != 4 {
		t.Errorf("Expected 4 change events, got %d", len(result.Changes))
	}
	if result.Truncated {
		t.Error("Unlimited status should not be truncated")
	}

	withoutAdded, err := Status(current, previous, "Input", false, 0)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(withoutAdded.Added) != 0 || withoutAdded.TotalChanges() != 2 {
		t.Errorf("Unexpected result without added files: %+v", withoutAdded)
	}
}

func TestStatusLimit(t *testing.T) {
	current := buildFingerprint(AbsolutePathStrategy, file("a", "1"), file("b", "2"), file("c", "3"))
	previous := buildFingerprint(AbsolutePathStrategy, file("z", "0"))

	limited, err := Status(current, previous, "Input", true, 2)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if limited.TotalChanges() != 2 {
		t.Errorf("Expected 2 reported changes, got %d", limited.TotalChanges())
	}
	if !limited.Truncated {
		t.Error("Expected limited status to be truncated")
	}

	exact, err := Status(current, previous, "Input", true, 4)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if exact.TotalChanges() != 4 || len(exact.Changes) != 4 {
		t.Errorf("Expected all 4 changes at the limit, got %d", exact.TotalChanges())
	}
	if exact.Truncated {
		t.Error("Status with exactly the limit of changes should not be truncated")
	}

	justUnder, err := Status(current, previous, "Input", true, 3)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if justUnder.TotalChanges() != 3 || len(justUnder.Changes) != 3 || !justUnder.Truncated {
		t.Errorf("Expected 3 truncated changes, got %d (truncated=%t)", justUnder.TotalChanges(), justUnder.Truncated)
	}

	enough, err := Status(current, previous, "Input", true, 10)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if enough.TotalChanges() != 4 || enough.Truncated {
		t.Errorf("Expected 4 untruncated changes, got %d (truncated=%t)", enough.TotalChanges(), enough.Truncated)
	}
}

func TestStatusStrategyMismatch(t *testing.T) {
	current := buildFingerprint(AbsolutePathStrategy, file("a", "1"))
	previous := buildFingerprint(ClasspathStrategy, file("a", "1"))

	_, err := Status(current, previous, "Input", true, 0)
	if !errors.Is(err, ErrStrategyMismatch) {
		t.Errorf("Expected ErrStrategyMismatch, got %v", err)
	}
}
