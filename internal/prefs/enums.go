package prefs

import "strings"

type ListLayout string

const (
	ListLayoutDefault       ListLayout = "DEFAULT"
	ListLayoutText          ListLayout = "TEXT"
	ListLayoutGrid          ListLayout = "GRID"
	ListLayoutGridOnlyIcons ListLayout = "GRID_ONLY_ICONS"
)

var ListLayouts = []ListLayout{ListLayoutDefault, ListLayoutText, ListLayoutGrid, ListLayoutGridOnlyIcons}

type ColorTheme string

const (
	ColorThemeDefault ColorTheme = "DEFAULT"
	ColorThemeDark    ColorTheme = "DARK"
	ColorThemeLight   ColorTheme = "LIGHT"
	ColorThemeGreen   ColorTheme = "GREEN"
	ColorThemeAmber   ColorTheme = "AMBER"
	ColorThemeDynamic ColorTheme = "DYNAMIC"
)

var ColorThemes = []ColorTheme{
	ColorThemeDefault, ColorThemeDark, ColorThemeLight,
	ColorThemeGreen, ColorThemeAmber, ColorThemeDynamic,
}

type Background string

const (
	BackgroundDim         Background = "DIM"
	BackgroundDark        Background = "DARK"
	BackgroundTransparent Background = "TRANSPARENT"
	BackgroundBlur        Background = "BLUR"
)

var Backgrounds = []Background{BackgroundDim, BackgroundDark, BackgroundTransparent, BackgroundBlur}

type Font string

const (
	FontHack           Font = "HACK"
	FontSystemDefault  Font = "SYSTEM_DEFAULT"
	FontSansSerif      Font = "SANS_SERIF"
	FontSerif          Font = "SERIF"
	FontMonospace      Font = "MONOSPACE"
	FontSerifMonospace Font = "SERIF_MONOSPACE"
)

var Fonts = []Font{FontHack, FontSystemDefault, FontSansSerif, FontSerif, FontMonospace, FontSerifMonospace}

type LockMethod string

const (
	LockMethodDeviceAdmin          LockMethod = "DEVICE_ADMIN"
	LockMethodAccessibilityService LockMethod = "ACCESSIBILITY_SERVICE"
)

var LockMethods = []LockMethod{LockMethodDeviceAdmin, LockMethodAccessibilityService}

type AppNameFormat string

const (
	AppNameFormatDefault   AppNameFormat = "DEFAULT"
	AppNameFormatUppercase AppNameFormat = "UPPERCASE"
	AppNameFormatLowercase AppNameFormat = "LOWERCASE"
)

var AppNameFormats = []AppNameFormat{AppNameFormatDefault, AppNameFormatUppercase, AppNameFormatLowercase}

// Format applies f to an app label.
func (f AppNameFormat) Format(name string) string {
	switch f {
	case AppNameFormatUppercase:
		return strings.ToUpper(name)
	case AppNameFormatLowercase:
		return strings.ToLower(name)
	}
	return name
}
