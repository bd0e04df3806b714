package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/token"

	"github.com/izubarev/openl-tablets-sub004/internal/compiler"
	"github.com/izubarev/openl-tablets-sub004/internal/ir"
)

// Error code constants - unified across all CLI commands. Project
// validation errors keep the compiler's own codes (E101-E124).
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load or compile failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // Method body failed to build
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeBadInput    = "E008" // Malformed --args, --env or batch file
	ErrCodeJournal     = "E009" // Journal open or read failed
)

// LoadError represents an error that occurred while loading a project.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadResult is a compiled and linked project with load statistics.
type LoadResult struct {
	IR        *ir.Project
	Project   *compiler.Project
	FileCount int
}

// LoadProject compiles and links the CUE project in dir. Every problem found
// is returned as a *LoadError; validation reports all of them at once.
func LoadProject(dir string, opts ...compiler.LinkOption) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("project directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing project directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	p, err := compiler.LoadDir(dir)
	if err != nil {
		return nil, []error{convertCompileError(err, ErrCodeLoadFailed)}
	}

	linked, err := compiler.Link(p, opts...)
	if err != nil {
		var verrs compiler.ValidationErrors
		if errors.As(err, &verrs) {
			errs := make([]error, len(verrs))
			for i, ve := range verrs {
				errs[i] = &LoadError{Code: ve.Code, Message: fmt.Sprintf("%s: %s", ve.Field, ve.Message)}
			}
			return nil, errs
		}
		return nil, []error{convertCompileError(err, ErrCodeBuildFailed)}
	}

	return &LoadResult{IR: p, Project: linked, FileCount: len(cueFiles)}, nil
}

// FindCUEFiles lists the .cue files directly in dir. Subdirectories are
// separate CUE packages and are not part of the project.
func FindCUEFiles(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*.cue"))
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, code string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    code,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: code, Message: err.Error()}
}

// loadErrorCode returns the code of err if it is a LoadError.
func loadErrorCode(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// loadOrFail loads a project for commands that need a linked project; load
// errors are reported through the formatter and become exit code 2.
func loadOrFail(opts *RootOptions, f *OutputFormatter, dir string) (*LoadResult, error) {
	result, errs := LoadProject(dir, opts.linkOptions()...)
	if len(errs) > 0 {
		return nil, outputLoadErrors(f, errs)
	}
	for _, w := range result.Project.Warnings {
		f.VerboseLog("warning: %s", w)
	}
	return result, nil
}

// outputLoadErrors prints every load error and returns an exit error.
func outputLoadErrors(f *OutputFormatter, errs []error) error {
	if f.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := loadErrorCode(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
			var loadErr *LoadError
			if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
				cliErrors[i].Details = loadErr.Pos.String()
			}
		}
		if err := writeJSON(f.Writer, CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("project failed to load with %d error(s)", len(errs)))
	}

	fmt.Fprintln(f.Writer, "✗ Project failed to load")
	fmt.Fprintln(f.Writer)
	for _, err := range errs {
		code, message := loadErrorCode(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(f.Writer, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		fmt.Fprintf(f.Writer, "  %s: %s\n\n", code, message)
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("project failed to load with %d error(s)", len(errs)))
}
