package selfmask

import (
	"github.com/spf13/cast"

	"go.viam.com/selfcollision/logging"
)

// LinkInfo names a robot link whose body counts as "self", with the padding (meters) added
// around its collision geometry and the scale applied to the geometry's linear dimensions.
type LinkInfo struct {
	Name    string  `json:"name"`
	Padding float64 `json:"padding"`
	Scale   float64 `json:"scale"`
}

// ParseLinkInfos reads a loosely typed list of link overrides, as decoded from a JSON or YAML
// config, into LinkInfos. Each entry is a map with a required "name" and optional "padding" and
// "scale", which default to the given values. A malformed entry stops processing; the entries
// before it are kept. Problems are logged, never returned.
func ParseLinkInfos(raw any, defaultPadding, defaultScale float64, logger logging.Logger) []LinkInfo {
	if raw == nil {
		logger.Warn("No links specified for self filtering.")
		return nil
	}
	entries, err := cast.ToSliceE(raw)
	if err != nil {
		logger.Warnw("Self see links need to be an array", "error", err)
		return nil
	}
	if len(entries) == 0 {
		logger.Warn("No values in self see links array")
		return nil
	}

	links := make([]LinkInfo, 0, len(entries))
	for i, entry := range entries {
		if _, isString := entry.(string); isString {
			logger.Warnf("Self see links entry %d is not a structure.  Stopping processing of self see links", i)
			break
		}
		fields, err := cast.ToStringMapE(entry)
		if err != nil {
			logger.Warnf("Self see links entry %d is not a structure.  Stopping processing of self see links", i)
			break
		}
		rawName, ok := fields["name"]
		if !ok {
			logger.Warnf("Self see links entry %d has no name.  Stopping processing of self see links", i)
			break
		}
		name, err := cast.ToStringE(rawName)
		if err != nil {
			logger.Warnf("Self see links entry %d has a name that is not a string.  Stopping processing of self see links", i)
			break
		}

		padding, ok := numberField(fields, "padding", defaultPadding, i, logger)
		if !ok {
			break
		}
		scale, ok := numberField(fields, "scale", defaultScale, i, logger)
		if !ok {
			break
		}
		links = append(links, LinkInfo{Name: name, Padding: padding, Scale: scale})
	}
	return links
}

// numberField returns the named numeric field of a link entry, or def when the field is absent.
// It reports false when the field is present but not a number.
func numberField(fields map[string]any, key string, def float64, index int, logger logging.Logger) (float64, bool) {
	raw, ok := fields[key]
	if !ok {
		logger.Debugf("Self see links entry %d has no %s.  Assuming default %s of %g", index, key, key, def)
		return def, true
	}
	value, err := cast.ToFloat64E(raw)
	if err != nil {
		logger.Warnf("Self see links entry %d has a %s that is not a number.  Stopping processing of self see links", index, key)
		return 0, false
	}
	return value, true
}
