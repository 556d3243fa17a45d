// Package content orchestrates regeneration of Unfold Story data by running
// the external Python pipeline through the job runner.
package content

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/scholarsite/scholarsite/pkg/jobs"
)

// Stage timeouts. These are part of the admin UI's contract.
const (
	TransformTimeout     = 120 * time.Second
	GenerateMonthTimeout = 300 * time.Second
	GenerateAllTimeout   = 600 * time.Second
)

// Stage names double as the keys of the response "details" object.
const (
	StageTransform = "stage1"
	StageGenerate  = "stage2"
)

// Job kinds.
const (
	KindGenerate = "unfold-story.generate"
	KindUpdate   = "unfold-story.update"
)

const (
	defaultPython        = "python3"
	defaultTransformName = "transform_data.py"
	defaultGenerateName  = "generate_stories.py"
)

// Pipeline describes how to invoke the external scripts.
type Pipeline struct {
	Python          string
	ScriptDir       string
	TransformScript string
	GenerateScript  string
	Env             []string

	TransformTimeout time.Duration
	GenerateTimeout  time.Duration // single month
	UpdateTimeout    time.Duration // full regeneration
}

// withDefaults fills unset fields.
func (p Pipeline) withDefaults() Pipeline {
	if p.Python == "" {
		p.Python = defaultPython
	}
	if p.TransformScript == "" {
		p.TransformScript = defaultTransformName
	}
	if p.GenerateScript == "" {
		p.GenerateScript = defaultGenerateName
	}
	if p.TransformTimeout <= 0 {
		p.TransformTimeout = TransformTimeout
	}
	if p.GenerateTimeout <= 0 {
		p.GenerateTimeout = GenerateMonthTimeout
	}
	if p.UpdateTimeout <= 0 {
		p.UpdateTimeout = GenerateAllTimeout
	}
	return p
}

func (p Pipeline) stage(name, script string, timeout time.Duration, args ...string) jobs.Stage {
	return jobs.Stage{
		Name:    name,
		Command: p.Python,
		Args:    append([]string{filepath.Join(p.ScriptDir, script)}, args...),
		Dir:     p.ScriptDir,
		Env:     p.Env,
		Timeout: timeout,
	}
}

// GenerateMonth builds the job for one month: transform, then generate.
func (p Pipeline) GenerateMonth(ym YearMonth) jobs.Spec {
	p = p.withDefaults()
	args := []string{"--year", strconv.Itoa(ym.Year), "--month", strconv.Itoa(ym.Month)}
	return jobs.Spec{
		Kind: KindGenerate,
		Key:  ym.String(),
		Stages: []jobs.Stage{
			p.stage(StageTransform, p.TransformScript, p.TransformTimeout, args...),
			p.stage(StageGenerate, p.GenerateScript, p.GenerateTimeout, args...),
		},
	}
}

// UpdateAll builds the job that refreshes source data and regenerates every month.
func (p Pipeline) UpdateAll() jobs.Spec {
	p = p.withDefaults()
	return jobs.Spec{
		Kind: KindUpdate,
		Stages: []jobs.Stage{
			p.stage(StageTransform, p.TransformScript, p.TransformTimeout),
			p.stage(StageGenerate, p.GenerateScript, p.UpdateTimeout, "--all"),
		},
	}
}

// YearMonth identifies one storybook month.
type YearMonth struct {
	Year  int
	Month int
}

// Valid reports whether the month is in range.
func (ym YearMonth) Valid() bool {
	return ym.Year >= 1900 && ym.Year <= 9999 && ym.Month >= 1 && ym.Month <= 12
}

// String formats as "YYYY-MM".
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// ParseYearMonth parses the "YYYY-MM" job key form.
func ParseYearMonth(s string) (YearMonth, bool) {
	var ym YearMonth
	if _, err := fmt.Sscanf(s, "%d-%d", &ym.Year, &ym.Month); err != nil {
		return YearMonth{}, false
	}
	return ym, ym.Valid()
}
