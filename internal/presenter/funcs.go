// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/vorlif/humanize"
	"github.com/vorlif/spreak/localize"
)

func (p *Presenter) templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"timeFormat":    timeFormat,
		"localizedTime": p.localizedTime,
		"since":         p.since,
		"floatFormat":   floatFormat,
		"coord":         coord,
		"pad":           pad,
		"loc":           p.loc,
		"lc":            strings.ToLower,
		"uc":            strings.ToUpper,
	}
}

func (p *Presenter) loc(val string) string {
	return p.localizer.Get(localize.MsgID(val))
}

func (p *Presenter) localizedTime(val time.Time) string {
	return p.humanizer.FormatTime(val, humanize.DateTimeFormat)
}

// since returns the time passed since val in words, e.g. "2 minutes ago".
func (p *Presenter) since(val time.Time) string {
	return p.humanizer.NaturalTime(val)
}

func timeFormat(val time.Time, fmt string) string {
	return val.Format(fmt)
}

// floatFormat rounds val to precision decimal places.
func floatFormat(val float64, precision int) string {
	return fmt.Sprintf("%.*f", precision, val)
}

// coord formats a coordinate with six decimal places.
func coord(val float64) string {
	pow := math.Pow(10, 6)
	return fmt.Sprintf("%.6f", math.Round(val*pow)/pow)
}

// pad fills val with spaces up to the given display width.
func pad(val string, width int) string {
	return runewidth.FillRight(val, width)
}
