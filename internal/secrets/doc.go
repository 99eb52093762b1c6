// Package secrets redacts credentials from document text before it is
// embedded or stored, using the gitleaks rule set.
package secrets
