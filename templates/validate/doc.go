/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package validate runs project validation after a template merge and
// drives a bounded fix loop: validate, hand the error list to the
// model-driven edit capability, re-validate, up to a configured number
// of iterations. A project that still fails once the iterations are
// exhausted is reported as degraded, never as a fatal error.
package validate
