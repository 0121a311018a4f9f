package camera

import "strings"

// parseImagesnapDevices reads the device list printed by imagesnap -l. Both
// the current "=> Name" format and the older AVCaptureDevice description
// format are understood.
func parseImagesnapDevices(s string) []Device {
	var devs []Device
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)

		var name string
		switch {
		case strings.HasPrefix(line, "=> "):
			name = strings.TrimPrefix(line, "=> ")
		case strings.HasPrefix(line, "<"):
			t := strings.Split(line, "[")
			if len(t) < 2 {
				continue
			}
			name = strings.Split(t[1], "]")[0]
		default:
			continue
		}
		if name == "" {
			continue
		}

		kind := Video
		if strings.Contains(line, "DV") || strings.Contains(strings.ToLower(line), "muxed") {
			kind = Muxed
		}
		devs = append(devs, Device{ID: name, Name: name, Kinds: []MediaKind{kind}})
	}
	return devs
}
