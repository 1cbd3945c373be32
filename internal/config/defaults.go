package config

// ApplyDefaults fills in zero-valued optional fields of a decoded setup
// file with their run_daq.py-equivalent defaults. A zero Runtime means
// batch mode (run until any one worker exits voluntarily) rather than a fixed-duration
// timed run; an unset NumProcess means a single instance of the callable.
func ApplyDefaults(sf *SetupFile) {
	for i := range sf.Workers {
		if sf.Workers[i].Spec.NumProcess <= 0 {
			sf.Workers[i].Spec.NumProcess = 1
		}
	}
}
