package progress

import (
	"testing"
)

func collect() (*Reporter, *[]int) {
	var values []int
	r := New(func(p int) { values = append(values, p) }, nil)
	return r, &values
}

func TestReporter_PhaseRanges(t *testing.T) {
	r, values := collect()
	r.DefinePhases(Phase{"analyze", 5}, Phase{"capture", 55}, Phase{"encode", 40})

	r.StartPhase("analyze", "")
	r.StartPhase("capture", "")
	r.Report(0.4)
	r.StartPhase("encode", "")
	r.Report(1)
	r.Complete()

	want := []int{0, 5, 27, 60, 100}
	if len(*values) != len(want) {
		t.Fatalf("expected %v, got %v", want, *values)
	}
	for i := range want {
		if (*values)[i] != want[i] {
			t.Errorf("emission %d: expected %d, got %d", i, want[i], (*values)[i])
		}
	}
}

func TestReporter_MonotonicWithinPhase(t *testing.T) {
	r, values := collect()
	r.DefinePhases(Phase{"work", 1})
	r.StartPhase("work", "")

	for i := 0; i <= 1000; i++ {
		r.Report(float64(i) / 1000)
	}

	prev := -1
	for _, v := range *values {
		if v <= prev {
			t.Fatalf("emission %d not strictly increasing after %d", v, prev)
		}
		prev = v
	}
	if prev != 100 {
		t.Errorf("expected to reach 100, got %d", prev)
	}
}

func TestReporter_NoRegression(t *testing.T) {
	r, values := collect()
	r.DefinePhases(Phase{"work", 1})
	r.StartPhase("work", "")
	r.Report(1)
	count := len(*values)

	r.Report(0)
	r.Report(0.5)

	if len(*values) != count {
		t.Errorf("expected no emissions after report(1), got %v", (*values)[count:])
	}
}

func TestReporter_ClampsFraction(t *testing.T) {
	r, values := collect()
	r.DefinePhases(Phase{"a", 1}, Phase{"b", 1})
	r.StartPhase("a", "")
	r.Report(7)

	last := (*values)[len(*values)-1]
	if last != 50 {
		t.Errorf("expected clamp to phase end 50, got %d", last)
	}
}

func TestReporter_RedefineKeepsMonotonic(t *testing.T) {
	r, values := collect()
	r.DefinePhases(Phase{"capture", 1}, Phase{"encode", 1})
	r.StartPhase("capture", "")
	r.Report(0.8) // 40

	r.DefinePhases(Phase{"transcode", 1})
	r.StartPhase("transcode", "")
	r.Report(0.2)
	r.Report(0.6)

	for i := 1; i < len(*values); i++ {
		if (*values)[i] <= (*values)[i-1] {
			t.Fatalf("values regressed: %v", *values)
		}
	}
	if last := (*values)[len(*values)-1]; last != 60 {
		t.Errorf("expected 60, got %d", last)
	}
}

func TestReporter_StatusCallback(t *testing.T) {
	var phases, statuses []string
	r := New(nil, func(phase, status string) {
		phases = append(phases, phase)
		statuses = append(statuses, status)
	})
	r.DefinePhases(Phase{"capture", 1})
	r.StartPhase("capture", "Capturing frames")

	if len(statuses) != 1 || statuses[0] != "Capturing frames" || phases[0] != "capture" {
		t.Errorf("unexpected status callbacks: %v %v", phases, statuses)
	}
}

func TestReporter_ReportWithoutPhasePanics(t *testing.T) {
	r, _ := collect()
	r.DefinePhases(Phase{"work", 1})

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	r.Report(0.5)
}

func TestReporter_ReportAfterCompletePanics(t *testing.T) {
	r, _ := collect()
	r.DefinePhases(Phase{"work", 1})
	r.StartPhase("work", "")
	r.Complete()

	defer func() {
		if recover() == nil {
			t.Error("expected panic after Complete cleared the phase")
		}
	}()
	r.Report(0.5)
}

func TestReporter_UnknownPhasePanics(t *testing.T) {
	r, _ := collect()
	r.DefinePhases(Phase{"work", 1})

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	r.StartPhase("missing", "")
}
