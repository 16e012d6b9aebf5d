package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPerformancePercent(t *testing.T) {
	assert.True(t, performancePercent(dec("150"), dec("100")).Equal(dec("50")))
	assert.True(t, performancePercent(dec("90"), dec("120")).Equal(dec("-25")))
	assert.True(t, performancePercent(dec("100"), dec("300")).Equal(dec("-66.6667")))
	assert.True(t, performancePercent(dec("100"), dec("0")).IsZero())
	assert.True(t, performancePercent(dec("0"), dec("0")).IsZero())
}

func TestPercentChange(t *testing.T) {
	assert.True(t, percentChange(dec("105"), dec("100")).Equal(dec("5")))
	assert.True(t, percentChange(dec("95"), dec("100")).Equal(dec("-5")))
	assert.True(t, percentChange(dec("95"), dec("0")).IsZero())
}

func TestRounding(t *testing.T) {
	assert.Equal(t, "10.1235", roundPrice(dec("10.12345")).String())
	assert.Equal(t, "10.13", roundAmount(dec("10.125")).String())
	assert.Equal(t, "0.3333", roundPercent(dec("0.33333")).String())
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$1,234.50", formatMoney(dec("1234.5"), "USD"))
	assert.Equal(t, "$201.50", formatMoney(dec("201.499"), "USD"))
	assert.Equal(t, "€10.00", formatMoney(dec("10"), "EUR"))
	assert.Equal(t, "$3.00", formatMoney(dec("3"), "NOPE"))
}
