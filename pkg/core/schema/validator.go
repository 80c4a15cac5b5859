package schema

import "errors"

// validate checks a builder before it is turned into a Schema.
// All problems are reported together.
func validate[T any](typeName string, b *Builder[T]) error {
	problems := append([]*ValidationError(nil), b.problems...)

	if b.table == "" && typeName == "" {
		problems = append(problems, &ValidationError{Message: "table name is required for unnamed types"})
	}

	if len(b.columns) == 0 {
		problems = append(problems, &ValidationError{Message: "at least one column must be declared"})
	}

	ignored := make(map[string]bool, len(b.ignored))
	for _, name := range b.ignored {
		ignored[Normalize(name)] = true
	}

	seen := make(map[string]bool, len(b.columns))
	identities := 0

	for _, c := range b.columns {
		key := Normalize(c.Name)

		if key == "" {
			problems = append(problems, &ValidationError{Message: "column name is empty"})
			continue
		}
		if seen[key] {
			problems = append(problems, &ValidationError{Column: c.Name, Message: "duplicate column name"})
		}
		seen[key] = true

		if ignored[key] {
			problems = append(problems, &ValidationError{Column: c.Name, Message: "column is both declared and ignored"})
		}
		if c.identity != nil {
			identities++
		}
	}

	if identities > 1 {
		problems = append(problems, &ValidationError{Message: "more than one identity column declared"})
	}

	if len(problems) == 0 {
		return nil
	}

	errs := make([]error, len(problems))
	for i, p := range problems {
		p.Type = typeName
		errs[i] = p
	}
	return errors.Join(errs...)
}
