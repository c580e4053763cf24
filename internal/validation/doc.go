// Package validation checks the decoded rxh configuration tree once at
// startup, before Master binds a single listener.
//
//	if verr := validation.ValidateStruct(&cfg); verr != nil {
//	    return fmt.Errorf("rxh.toml: %w", verr)
//	}
package validation
