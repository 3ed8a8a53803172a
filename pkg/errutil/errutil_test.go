// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/stockroom/stockroom/pkg/errutil"
)

func TestAssertErrorCode(t *testing.T) {
	err := oops.Code("STORE_NOT_READY").Errorf("schema missing")
	errutil.AssertErrorCode(t, err, "STORE_NOT_READY")
}

func TestAssertErrorCode_WrappedKeepsOuterCode(t *testing.T) {
	inner := oops.Code("INNER").Errorf("cause")
	err := oops.Code("OUTER").Wrap(inner)
	errutil.AssertErrorCode(t, err, "OUTER")
}

func TestAssertErrorContext(t *testing.T) {
	err := oops.With("slug", "labels").Errorf("record missing")
	errutil.AssertErrorContext(t, err, "slug", "labels")
}
