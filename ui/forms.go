package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Validity is the validation mark of a field.
type Validity int

const (
	Unchecked Validity = iota
	Valid
	Invalid
)

// Field is one input of a Form. Secret fields are read without echo.
type Field struct {
	Name     string
	Label    string
	Value    string
	Required bool
	Secret   bool
	State    Validity
}

// Form is an ordered set of fields submitted together.
type Form struct {
	Fields []*Field
}

// NewForm builds a form from fields, in order.
func NewForm(fields ...*Field) *Form { return &Form{Fields: fields} }

// Field returns the first field called name, or nil.
func (f *Form) Field(name string) *Field {
	for _, fl := range f.Fields {
		if fl.Name == name {
			return fl
		}
	}
	return nil
}

// Set assigns the value of the first field called name.
func (f *Form) Set(name, value string) {
	if fl := f.Field(name); fl != nil {
		fl.Value = value
	}
}

// Serialize maps every field name to its value. When names repeat the
// later field wins.
func (f *Form) Serialize() map[string]string {
	data := make(map[string]string, len(f.Fields))
	for _, fl := range f.Fields {
		data[fl.Name] = fl.Value
	}
	return data
}

// Validate marks each required field Invalid when its trimmed value is
// empty and Valid otherwise. Optional fields are left alone.
func (f *Form) Validate() bool {
	ok := true
	for _, fl := range f.Fields {
		if !fl.Required {
			continue
		}
		if strings.TrimSpace(fl.Value) == "" {
			fl.State = Invalid
			ok = false
		} else {
			fl.State = Valid
		}
	}
	return ok
}

// Invalid returns the fields that failed the last Validate.
func (f *Form) Invalid() []*Field {
	var out []*Field
	for _, fl := range f.Fields {
		if fl.State == Invalid {
			out = append(out, fl)
		}
	}
	return out
}

// Reset clears values and validation marks.
func (f *Form) Reset() {
	for _, fl := range f.Fields {
		fl.Value = ""
		fl.State = Unchecked
	}
}

// Prompter fills forms from a terminal. ReadSecret reads a value without
// echo; it defaults to a plain line read.
type Prompter struct {
	In         *bufio.Scanner
	Out        io.Writer
	ReadSecret func(prompt string) (string, error)
}

// NewPrompter reads lines from in and writes prompts to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{In: bufio.NewScanner(in), Out: out}
}

// Line prints prompt and returns the trimmed answer. io.EOF means the
// input ended.
func (p *Prompter) Line(prompt string) (string, error) {
	fmt.Fprint(p.Out, prompt)
	if !p.In.Scan() {
		if err := p.In.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.In.Text()), nil
}

// Fill prompts for every field that has no value yet.
func (p *Prompter) Fill(f *Form) error {
	for _, fl := range f.Fields {
		if fl.Value != "" {
			continue
		}
		label := fl.Label
		if label == "" {
			label = fl.Name
		}
		if !fl.Required {
			label += " (optional)"
		}
		var (
			v   string
			err error
		)
		if fl.Secret && p.ReadSecret != nil {
			v, err = p.ReadSecret(label + ": ")
		} else {
			v, err = p.Line(label + ": ")
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", fl.Name, err)
		}
		fl.Value = v
	}
	return nil
}

// Confirm asks a yes/no question, defaulting to no, and runs fn only on yes.
func (p *Prompter) Confirm(prompt string, fn func()) bool {
	answer, err := p.Line(prompt + " [y/N]: ")
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		if fn != nil {
			fn()
		}
		return true
	}
	return false
}
