package config

const (
	defaultTimeZone      = "America/Santiago"
	defaultRuntimeDir    = "~/.local/share/marketcast"
	defaultBind          = "127.0.0.1:8787"
	defaultRunHour       = 7
	defaultWindowMinutes = 10
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"

	defaultRunLogMaxBytes      = 1 << 20 // 1 MiB
	defaultRunLogTailReadBytes = 256 << 10
	defaultRunLogDefaultLines  = 200
	defaultRunLogMinLines      = 10
	defaultRunLogMaxLines      = 2000
)

// ProfileShort and ProfileNormal are the two execution variants: the short
// profile produces only the vertical short-form video, the normal profile
// produces the full-length video.
const (
	ProfileShort  = "short"
	ProfileNormal = "normal"
)

// Default returns a Config populated with repository defaults. The pipeline
// step list mirrors the five generation scripts the daemon drives.
func Default() Config {
	return Config{
		Service: Service{
			TimeZone:   defaultTimeZone,
			RuntimeDir: defaultRuntimeDir,
			Bind:       defaultBind,
			AllowForce: true,
		},
		Schedule: Schedule{
			Hour:          defaultRunHour,
			WindowMinutes: defaultWindowMinutes,
			Weekdays:      []string{"mon", "tue", "wed", "thu", "fri"},
			Slots: []Slot{
				{Minute: 0, Profile: ProfileShort},
				{Minute: 30, Profile: ProfileNormal},
			},
		},
		Pipeline: Pipeline{
			WorkDir:    ".",
			UploadStep: "upload",
			Steps: []Step{
				{Name: "fetch_to_json", Command: []string{"python", "fetch_to_json.py"}},
				{Name: "render_panel", Command: []string{"python", "render_panel.py"}},
				{Name: "voice", Command: []string{"python", "voice_from_json.py"}},
				{
					Name:    "make_video",
					Command: []string{"bash", "make_video.sh"},
					Env: map[string]map[string]string{
						ProfileShort: {
							"GENERATE_SHORT_VIDEO": "1",
							"GENERATE_FULL_VIDEO":  "0",
						},
						ProfileNormal: {
							"GENERATE_SHORT_VIDEO": "0",
							"GENERATE_FULL_VIDEO":  "1",
						},
					},
				},
				{
					Name:    "upload",
					Command: []string{"python", "upload_to_youtube.py"},
					Env: map[string]map[string]string{
						ProfileShort:  {"UPLOAD_SHORT": "1", "UPLOAD_FULL": "0"},
						ProfileNormal: {"UPLOAD_SHORT": "0", "UPLOAD_FULL": "1"},
					},
				},
			},
		},
		RunLog: RunLog{
			MaxBytes:      defaultRunLogMaxBytes,
			TailReadBytes: defaultRunLogTailReadBytes,
			DefaultLines:  defaultRunLogDefaultLines,
			MinLines:      defaultRunLogMinLines,
			MaxLines:      defaultRunLogMaxLines,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
			File:   true,
		},
	}
}
