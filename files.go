/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
)

const sizePrefixes = "kMGTPE"

// humanReadableSize formats bytes with SI prefixes, e.g. 1500 -> "1.5 kB".
func humanReadableSize(bytes int64) string {
	if bytes < 1000 {
		return fmt.Sprintf("%d B", bytes)
	}

	value, exp := float64(bytes)/1000, 0
	for value >= 1000 && exp < len(sizePrefixes)-1 {
		value /= 1000
		exp++
	}

	return fmt.Sprintf("%.1f %cB", value, sizePrefixes[exp])
}
