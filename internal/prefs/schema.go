package prefs

// Preference groups. Every group stores its keys as
// <prefix><name>_key.
var (
	GroupInternal        = newGroup("internal", "settings_internal_")
	GroupApps            = newGroup("apps", "settings_apps_")
	GroupList            = newGroup("list", "settings_list_")
	GroupGestures        = newGroup("gestures", "settings_gesture_")
	GroupGeneral         = newGroup("general", "settings_general_")
	GroupTheme           = newGroup("theme", "settings_theme_")
	GroupClock           = newGroup("clock", "settings_clock_")
	GroupDisplay         = newGroup("display", "settings_display_")
	GroupFunctionality   = newGroup("functionality", "settings_functionality_")
	GroupEnabledGestures = newGroup("enabled_gestures", "settings_enabled_gestures_")
	GroupActions         = newGroup("actions", "settings_actions_")
	GroupWidgets         = newGroup("widgets", "settings_widgets_")
)

// internal
var (
	// InternalStarted is set once the user has finished the tutorial.
	InternalStarted     = boolPref(GroupInternal, "started", false)
	InternalStartedTime = longPref(GroupInternal, "started_time")
	// InternalVersionCode is the schema version of the stored preferences.
	// -1 means nothing has been written yet.
	InternalVersionCode = intPref(GroupInternal, "version_code", -1)
)

// apps
var (
	AppsFavorites            = setPref(GroupApps, "favorites", AppSetCodec)
	AppsHidden               = setPref(GroupApps, "hidden", AppSetCodec)
	AppsPinnedShortcuts      = setPref(GroupApps, "pinned_shortcuts", ShortcutSetCodec)
	AppsCustomNames          = namesPref(GroupApps, "custom_names")
	AppsHideBoundApps        = boolPref(GroupApps, "hide_bound_apps", false)
	AppsHidePausedApps       = boolPref(GroupApps, "hide_paused_apps", false)
	AppsHidePrivateSpaceApps = boolPref(GroupApps, "hide_private_space_apps", false)
)

// list
var (
	ListLayoutPref    = enumPref(GroupList, "layout", ListLayouts, ListLayoutDefault)
	ListReverseLayout = boolPref(GroupList, "reverse_layout", false)
	ListAppNameFormat = enumPref(GroupList, "app_name_format", AppNameFormats, AppNameFormatDefault)
)

// general
var (
	GeneralChooseHomeScreen = action(GroupGeneral, "choose_home_screen")
)

// theme
var (
	ThemeWallpaper       = action(GroupTheme, "wallpaper")
	ThemeColorTheme      = enumPref(GroupTheme, "color_theme", ColorThemes, ColorThemeDefault)
	ThemeBackground      = enumPref(GroupTheme, "background", Backgrounds, BackgroundDim)
	ThemeFont            = enumPref(GroupTheme, "font", Fonts, FontHack)
	ThemeTextShadow      = boolPref(GroupTheme, "text_shadow", false)
	ThemeMonochromeIcons = boolPref(GroupTheme, "monochrome_icons", false)
)

// clock
var (
	ClockFont = enumPref(GroupClock, "font", Fonts, FontHack)
	// ClockColor is an ARGB color; the default is opaque white.
	ClockColor        = intPref(GroupClock, "color", -1)
	ClockDateVisible  = boolPref(GroupClock, "date_visible", true)
	ClockTimeVisible  = boolPref(GroupClock, "time_visible", true)
	ClockFlipDateTime = boolPref(GroupClock, "flip_date_time", false)
	ClockLocalized    = boolPref(GroupClock, "localized", false)
	ClockShowSeconds  = boolPref(GroupClock, "show_seconds", true)
)

// display
var (
	DisplayScreenTimeoutDisabled = boolPref(GroupDisplay, "screen_timeout_disabled", false)
	DisplayHideStatusBar         = boolPref(GroupDisplay, "hide_status_bar", true)
	DisplayHideNavigationBar     = boolPref(GroupDisplay, "hide_navigation_bar", false)
	DisplayRotateScreen          = boolPref(GroupDisplay, "rotate_screen", true)
)

// functionality
var (
	FunctionalitySearchAutoLaunch        = boolPref(GroupFunctionality, "search_auto_launch", true)
	FunctionalitySearchWeb               = boolPrefNoDefault(GroupFunctionality, "search_web")
	FunctionalitySearchAutoOpenKeyboard  = boolPref(GroupFunctionality, "search_auto_open_keyboard", true)
	FunctionalitySearchAutoCloseKeyboard = boolPref(GroupFunctionality, "search_auto_close_keyboard", false)
	FunctionalitySearchFuzzy             = boolPref(GroupFunctionality, "search_fuzzy", true)
)

// enabled_gestures
var (
	EnabledGesturesDoubleSwipe        = boolPref(GroupEnabledGestures, "double_swipe", true)
	EnabledGesturesEdgeSwipe          = boolPref(GroupEnabledGestures, "edge_swipe", true)
	EnabledGesturesEdgeSwipeEdgeWidth = intPref(GroupEnabledGestures, "edge_swipe_edge_width", 15)
)

// actions
var (
	ActionsLockMethod = enumPref(GroupActions, "lock_method", LockMethods, LockMethodDeviceAdmin)
)

// widgets
var (
	WidgetsWidgets      = setPref(GroupWidgets, "widgets", WidgetSetCodec)
	WidgetsCustomPanels = setPref(GroupWidgets, "custom_panels", PanelSetCodec)
)
