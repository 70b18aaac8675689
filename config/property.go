// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package config

import (
	"fmt"
	"strconv"
)

// Property is an optional parameter for configuring a state cache.
type Property string

const (
	// HistorySize is the number of difficulty entries retained.
	HistorySize = Property("HistorySize")
	// GracePeriod is the number of heights an expired entry is kept
	// before it is pruned.
	GracePeriod = Property("GracePeriod")
	// PruneInterval is the distance in heights between two prune runs.
	PruneInterval = Property("PruneInterval")
	// HashRetention is the number of heights a transaction hash is kept
	// in the hash cache.
	HashRetention = Property("HashRetention")
	// Codec names the value encoding used for snapshots.
	Codec = Property("Codec")
	// LogLevel is the minimum level of emitted log messages.
	LogLevel = Property("LogLevel")
)

// Properties are optional settings which may influence the behavior of a
// state cache. Unset properties use the defaults of Default().
type Properties map[Property]string

// GetInteger is a utility function for Properties to retrieve numeric values.
func (p *Properties) GetInteger(name Property, fallback int) (int, error) {
	if value, found := (*p)[name]; found {
		res, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid value for '%s' property: %v", name, value)
		}
		return res, nil
	}
	return fallback, nil
}

// SetInteger is a utility function for Properties to set numeric values.
func (p *Properties) SetInteger(name Property, value int) {
	if *p == nil {
		*p = map[Property]string{}
	}
	(*p)[name] = strconv.Itoa(value)
}

// GetString retrieves a property, or the fallback if it is not set.
func (p *Properties) GetString(name Property, fallback string) string {
	if value, found := (*p)[name]; found {
		return value
	}
	return fallback
}

// SetString sets a property.
func (p *Properties) SetString(name Property, value string) {
	if *p == nil {
		*p = map[Property]string{}
	}
	(*p)[name] = value
}
