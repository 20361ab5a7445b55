// Package validation provides struct tag validation on top of the
// validator library.
//
// Configuration structs declare constraints with tags and call Validate:
//
//	type Target struct {
//	    Name string `mapstructure:"name" validate:"required"`
//	    URL  string `mapstructure:"url" validate:"required,url"`
//	}
//	err := validation.Validate(&target)
//
// Failures come back as *Error, carrying one FieldError per offending
// field, named by its mapstructure tag.
package validation
