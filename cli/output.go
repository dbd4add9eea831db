package cli

import "github.com/fatih/color"

// Terminal colors. fatih/color disables them when stdout is not a terminal.
var (
	Brand  = color.New(color.FgHiGreen, color.Bold)
	Subtle = color.New(color.FgHiBlack)
	Focal  = color.New(color.FgHiYellow, color.Bold)
	Lit    = color.New(color.FgCyan)
	Good   = color.New(color.FgGreen)
	Bad    = color.New(color.FgRed)
)
