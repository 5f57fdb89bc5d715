// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
)

type decimalValue struct {
	target *decimal.Decimal
}

func (v decimalValue) String() string {
	if v.target == nil {
		return "0"
	}
	return v.target.String()
}

func (v decimalValue) Set(text string) error {
	parsed, err := decimal.NewFromString(text)
	if err != nil {
		return err
	}
	*v.target = parsed
	return nil
}

func (decimalValue) Type() string { return "decimal" }

// DecimalVar registers a flag holding a money amount such as "12.50".
func DecimalVar(flagSet *pflag.FlagSet, target *decimal.Decimal, name string, value decimal.Decimal, usage string) {
	*target = value
	flagSet.Var(decimalValue{target: target}, name, usage)
}
