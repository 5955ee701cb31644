package logging

import (
	"fmt"
	"sync"

	"github.com/Station-Manager/errors"
	"github.com/authforge/authcore/config"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var validate *validator.Validate
var once sync.Once

// sinkPlan is a validated sink with its options already parsed.
type sinkPlan struct {
	sc        config.Sink
	level     zerolog.Level
	rotation  rotationPolicy
	retention retentionPolicy
}

// planSinks validates every enabled sink of cfg. Disabled sinks are not
// checked, so a bad path on a sink that is switched off is not an error.
// A level, rotation or retention that does not parse falls back to the
// default for that sink; each fallback is returned as a warning.
func planSinks(cfg *config.Logging) ([]sinkPlan, []string, error) {
	const op errors.Op = "logging.planSinks"
	if cfg == nil {
		return nil, nil, errors.New(op).Msg(errMsgNilConfig)
	}

	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})

	defaults := map[config.SinkName]config.Sink{}
	for _, d := range config.Defaults().Logging.Sinks() {
		defaults[d.Name] = d
	}

	var plans []sinkPlan
	var warnings []string
	for _, sc := range cfg.Sinks() {
		if !sc.Enabled {
			continue
		}
		def := defaults[sc.Name]

		level, err := parseLevel(sc.Level)
		if err != nil {
			warnings = append(warnings, fallbackWarning(sc.Name, "level", sc.Level, def.Level))
			sc.Level = def.Level
			if level, err = parseLevel(sc.Level); err != nil {
				return nil, nil, errors.New(op).Err(err).Msg(fmt.Sprintf("%s sink=%s field=level", errMsgConfigInvalid, sc.Name))
			}
		}
		rot, err := parseRotation(sc.Rotation)
		if err != nil {
			warnings = append(warnings, fallbackWarning(sc.Name, "rotation", sc.Rotation, def.Rotation))
			sc.Rotation = def.Rotation
			if rot, err = parseRotation(sc.Rotation); err != nil {
				return nil, nil, errors.New(op).Err(err).Msg(fmt.Sprintf("%s sink=%s field=rotation", errMsgConfigInvalid, sc.Name))
			}
		}
		ret, err := parseRetention(sc.Retention)
		if err != nil {
			warnings = append(warnings, fallbackWarning(sc.Name, "retention", sc.Retention, def.Retention))
			sc.Retention = def.Retention
			if ret, err = parseRetention(sc.Retention); err != nil {
				return nil, nil, errors.New(op).Err(err).Msg(fmt.Sprintf("%s sink=%s field=retention", errMsgConfigInvalid, sc.Name))
			}
		}
		if ret.maxFiles == 0 && sc.MaxFiles > 0 {
			ret.maxFiles = sc.MaxFiles
		}

		if err := validate.Struct(sc); err != nil {
			return nil, nil, errors.New(op).Err(err).Msg(fmt.Sprintf("%s sink=%s", errMsgConfigInvalid, sc.Name))
		}

		plans = append(plans, sinkPlan{sc: sc, level: level, rotation: rot, retention: ret})
	}

	if len(plans) == 0 {
		return nil, nil, errors.New(op).Msg(errMsgNoSinks)
	}
	return plans, warnings, nil
}

func fallbackWarning(name config.SinkName, field, value, def string) string {
	return fmt.Sprintf("log %s sink: invalid %s %q, using %q", name, field, value, def)
}
