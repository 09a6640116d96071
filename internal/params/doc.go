// Package params holds the user-defined configuration fields a portal
// exposes alongside the WiFi credentials form.
//
// Each Parameter has an id, a label, a typed value and an optional custom
// validator. Values only change through SetValue, so a stored value always
// satisfied the parameter's rule at the moment it was written:
//
//	name := params.New("device_name", "Device name", "sensor-1", params.TypeText)
//	interval := params.New("interval", "Report interval", "60", params.TypeNumber)
//
//	reg := params.NewRegistry()
//	reg.Add(name)
//	reg.Add(interval)
//
//	res := reg.Update(map[string]string{"interval": "12a"})
//	// res.Rejected == []string{"interval"}, interval.Value() == "60"
package params
