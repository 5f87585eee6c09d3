// Package console implements the interactive, menu-driven terminal front end.
// It talks to the tracker only through tracker.Service.
package console

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alem-hub/student-tracker/internal/application/tracker"
	"github.com/alem-hub/student-tracker/internal/domain/shared"
	"github.com/alem-hub/student-tracker/internal/domain/student"

	"github.com/charmbracelet/lipgloss"
)

// ══════════════════════════════════════════════════════════════════════════════
// STYLES
// ══════════════════════════════════════════════════════════════════════════════

var (
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")
	colorPrimary = lipgloss.Color("#7C3AED")
)

type styles struct {
	success lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	muted   lipgloss.Style
	primary lipgloss.Style
}

// newStyles binds the palette to a renderer for out, so plain writers get plain text.
func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		success: r.NewStyle().Foreground(colorSuccess).Bold(true),
		warning: r.NewStyle().Foreground(colorWarning).Bold(true),
		err:     r.NewStyle().Foreground(colorError).Bold(true),
		muted:   r.NewStyle().Foreground(colorMuted),
		primary: r.NewStyle().Foreground(colorPrimary).Bold(true),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MENU
// ══════════════════════════════════════════════════════════════════════════════

// Menu is the read-eval-print loop over a tracker.Service.
type Menu struct {
	svc    tracker.Service
	in     *bufio.Scanner
	out    io.Writer
	styles styles
}

// NewMenu creates a menu reading from in and writing to out.
func NewMenu(svc tracker.Service, in io.Reader, out io.Writer) *Menu {
	return &Menu{
		svc:    svc,
		in:     bufio.NewScanner(in),
		out:    out,
		styles: newStyles(out),
	}
}

var menuItems = []string{
	"1. Add Student",
	"2. Add/Update Grades",
	"3. View Student Details",
	"4. Calculate Student Average",
	"5. Subject-wise Topper",
	"6. Class Average for Subject",
	"7. Backup to Text File",
	"8. List Students",
	"9. Edit Student",
	"10. Delete Student",
	"0. Exit",
}

// Run loops until the user chooses 0, input ends or ctx is cancelled.
// Operation errors are printed and the loop continues.
func (m *Menu) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		m.printMenu()
		choice, ok := m.prompt("Choose an option: ")
		if !ok {
			return m.in.Err()
		}

		if choice == "0" {
			m.println("Goodbye!")
			return nil
		}

		if err := m.dispatch(ctx, choice); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			m.printError(err)
		}
	}
}

func (m *Menu) dispatch(ctx context.Context, choice string) error {
	switch choice {
	case "1":
		return m.addStudent(ctx)
	case "2":
		return m.addGrades(ctx)
	case "3":
		return m.viewStudent(ctx)
	case "4":
		return m.studentAverage(ctx)
	case "5":
		return m.subjectTopper(ctx)
	case "6":
		return m.classAverage(ctx)
	case "7":
		return m.export(ctx)
	case "8":
		return m.listStudents(ctx)
	case "9":
		return m.editStudent(ctx)
	case "10":
		return m.deleteStudent(ctx)
	default:
		m.warn("Invalid choice.")
		return nil
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Actions
// ─────────────────────────────────────────────────────────────────────────────

func (m *Menu) addStudent(ctx context.Context) error {
	name, err := m.require("Enter student name: ")
	if err != nil {
		return err
	}
	roll, err := m.require("Enter roll number: ")
	if err != nil {
		return err
	}

	s, err := m.svc.AddStudent(ctx, name, roll)
	if err != nil {
		return err
	}
	m.success("Added: %s", renderInfo(s))
	return nil
}

func (m *Menu) addGrades(ctx context.Context) error {
	roll, err := m.require("Enter roll number: ")
	if err != nil {
		return err
	}

	grades := make(map[string]float64)
	m.muted("Enter subject=score (empty to stop). Example: Math=95")
	for {
		line, ok := m.prompt("> ")
		if !ok || line == "" {
			break
		}
		subject, score, err := tracker.ParseGradeEntry(line)
		if err != nil {
			if errors.Is(err, shared.ErrMalformedEntry) {
				m.warn("Invalid format. Use subject=score")
			} else {
				m.printError(err)
			}
			continue
		}
		grades[subject] = score
	}

	s, err := m.svc.AddGrades(ctx, roll, grades)
	if err != nil {
		return err
	}
	m.success("Updated: %s", renderInfo(s))
	return nil
}

func (m *Menu) viewStudent(ctx context.Context) error {
	roll, err := m.require("Roll number: ")
	if err != nil {
		return err
	}

	s, err := m.svc.ViewStudentDetails(ctx, roll)
	if err != nil {
		return err
	}
	m.println(renderInfo(s))
	return nil
}

func (m *Menu) studentAverage(ctx context.Context) error {
	roll, err := m.require("Roll number: ")
	if err != nil {
		return err
	}

	avg, err := m.svc.CalculateAverage(ctx, roll)
	if err != nil {
		return err
	}
	m.println(fmt.Sprintf("Average: %.2f", avg))
	return nil
}

func (m *Menu) subjectTopper(ctx context.Context) error {
	subject, err := m.require("Subject: ")
	if err != nil {
		return err
	}

	top, ok, err := m.svc.SubjectTopper(ctx, subject)
	if err != nil {
		return err
	}
	if !ok {
		m.muted("No data for that subject yet.")
		return nil
	}
	m.println(fmt.Sprintf("Topper in %s: %s (%s) - %s", subject, top.Name, top.RollNumber, formatScore(top.Score)))
	return nil
}

func (m *Menu) classAverage(ctx context.Context) error {
	subject, err := m.require("Subject: ")
	if err != nil {
		return err
	}

	avg, ok, err := m.svc.ClassAverageForSubject(ctx, subject)
	if err != nil {
		return err
	}
	if !ok {
		m.muted("No data for that subject yet.")
		return nil
	}
	m.println(fmt.Sprintf("Class average for %s: %.2f", subject, avg))
	return nil
}

func (m *Menu) export(ctx context.Context) error {
	path, err := m.svc.ExportToTxt(ctx, "")
	if err != nil {
		return err
	}
	m.success("Exported to %s", path)
	return nil
}

func (m *Menu) listStudents(ctx context.Context) error {
	students, err := m.svc.ListStudents(ctx)
	if err != nil {
		return err
	}
	if len(students) == 0 {
		m.muted("No students yet.")
		return nil
	}
	for _, s := range students {
		m.println(renderInfo(s))
	}
	return nil
}

func (m *Menu) editStudent(ctx context.Context) error {
	roll, err := m.require("Roll number to edit: ")
	if err != nil {
		return err
	}

	current, err := m.svc.ViewStudentDetails(ctx, roll)
	if err != nil {
		return err
	}

	name, ok := m.prompt(fmt.Sprintf("New name [%s]: ", current.Name))
	if !ok {
		return io.EOF
	}
	if name == "" {
		name = current.Name
	}
	newRoll, ok := m.prompt(fmt.Sprintf("New roll number [%s]: ", current.RollNumber))
	if !ok {
		return io.EOF
	}
	if newRoll == "" {
		newRoll = current.RollNumber
	}

	s, err := m.svc.EditStudent(ctx, roll, name, newRoll)
	if err != nil {
		return err
	}
	m.success("Updated: %s", renderInfo(s))
	return nil
}

func (m *Menu) deleteStudent(ctx context.Context) error {
	roll, err := m.require("Roll number to delete: ")
	if err != nil {
		return err
	}

	answer, ok := m.prompt(fmt.Sprintf("Delete %s and all their grades? [y/N]: ", roll))
	if !ok {
		return io.EOF
	}
	if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
		m.muted("Cancelled.")
		return nil
	}

	if err := m.svc.DeleteStudent(ctx, roll); err != nil {
		return err
	}
	m.success("Deleted %s", roll)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// I/O helpers
// ─────────────────────────────────────────────────────────────────────────────

func (m *Menu) printMenu() {
	m.println("")
	m.println(m.styles.primary.Render("--- Student Performance Tracker ---"))
	for _, item := range menuItems {
		m.println(item)
	}
}

// prompt prints label and reads one trimmed line. ok is false at end of input.
func (m *Menu) prompt(label string) (string, bool) {
	fmt.Fprint(m.out, label)
	if !m.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(m.in.Text()), true
}

// require is prompt that turns end of input into io.EOF.
func (m *Menu) require(label string) (string, error) {
	value, ok := m.prompt(label)
	if !ok {
		return "", io.EOF
	}
	return value, nil
}

func (m *Menu) println(line string) {
	fmt.Fprintln(m.out, line)
}

func (m *Menu) success(format string, args ...interface{}) {
	fmt.Fprint(m.out, m.styles.success.Render("✓ "))
	fmt.Fprintf(m.out, format+"\n", args...)
}

func (m *Menu) warn(format string, args ...interface{}) {
	fmt.Fprint(m.out, m.styles.warning.Render("⚠ "))
	fmt.Fprintf(m.out, format+"\n", args...)
}

func (m *Menu) muted(format string, args ...interface{}) {
	fmt.Fprintln(m.out, m.styles.muted.Render(fmt.Sprintf(format, args...)))
}

func (m *Menu) printError(err error) {
	message := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}
	fmt.Fprint(m.out, m.styles.err.Render("✗ "))
	fmt.Fprintf(m.out, "Error: %s\n", message)
}

// renderInfo prints the canonical snapshot as compact JSON.
func renderInfo(s *student.Student) string {
	data, err := json.Marshal(s.Info())
	if err != nil {
		return fmt.Sprintf("%s (%s)", s.Name, s.RollNumber)
	}
	return string(data)
}

func formatScore(score float64) string {
	return fmt.Sprintf("%g", score)
}
