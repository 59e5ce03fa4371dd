package record

// EstablishmentColumns names the header cells read from the establishment CSV.
type EstablishmentColumns struct {
	Name        string `yaml:"name"`
	Address     string `yaml:"address"`
	City        string `yaml:"city"`
	State       string `yaml:"state"`
	Zip         string `yaml:"zip"`
	Description string `yaml:"description"`
	Established string `yaml:"established"`
	Location    string `yaml:"location"`
}

// DefaultEstablishmentColumns matches the Active Food Establishment Licenses export.
func DefaultEstablishmentColumns() EstablishmentColumns {
	return EstablishmentColumns{
		Name:        "BusinessName",
		Address:     "Address",
		City:        "CITY",
		State:       "STATE",
		Zip:         "ZIP",
		Description: "DESCRIPT",
		Established: "LICENSEADDDTTM",
		Location:    "Location",
	}
}

// IncidentColumns names the header cells read from the incident CSV.
type IncidentColumns struct {
	Type     string `yaml:"type"`
	Occurred string `yaml:"occurred"`
	Weapon   string `yaml:"weapon"`
	Shooting string `yaml:"shooting"`
	Location string `yaml:"location"`
}

// DefaultIncidentColumns matches the Crime Incident Reports export.
func DefaultIncidentColumns() IncidentColumns {
	return IncidentColumns{
		Type:     "INCIDENT_TYPE_DESCRIPTION",
		Occurred: "FROMDATE",
		Weapon:   "WEAPONTYPE",
		Shooting: "Shooting",
		Location: "Location",
	}
}
