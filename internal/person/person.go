package person

import (
	"fmt"
	"strings"
)

// Person is the record flowing through the pipeline. Values are never
// mutated after construction; the transform returns a new Person.
type Person struct {
	FirstName string
	LastName  string
}

func (p Person) String() string {
	return fmt.Sprintf("firstName: %s, lastName: %s", p.FirstName, p.LastName)
}

// ParseLine splits one input line into a Person. The input format is a bare
// comma split with no quoting, so encoding/csv is intentionally not used.
// lineNo is 1-based and only used for error reporting.
func ParseLine(path, line string, lineNo int) (Person, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 2 {
		return Person{}, &ParseError{Path: path, Line: lineNo, Text: line}
	}
	return Person{
		FirstName: strings.TrimSpace(fields[0]),
		LastName:  strings.TrimSpace(fields[1]),
	}, nil
}

// Transform uppercases both fields. Pure and idempotent; strings.ToUpper is
// locale-independent.
func Transform(p Person) Person {
	return Person{
		FirstName: strings.ToUpper(p.FirstName),
		LastName:  strings.ToUpper(p.LastName),
	}
}
