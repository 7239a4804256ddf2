package schema

import "time"

// ProsensingPAF is the status packet of a ProSensing radar, stored as a
// special attribute set. Only the columns used by current plugins are
// modeled; extra columns can be added to the table by migrations and are
// accepted by the wide-row insert as soon as they exist.
type ProsensingPAF struct {
	PacketID     int64     `gorm:"column:packet_id;primaryKey;autoIncrement"`
	Time         time.Time `gorm:"column:time;not null;index"`
	SiteID       int64     `gorm:"column:site_id;not null"`
	InstrumentID int64     `gorm:"column:instrument_id;not null;index"`

	AdSkipCount                   *int     `gorm:"column:ad_skip_count"`
	AmplifierDrivePowerBurstADbm  *float64 `gorm:"column:amplifier_drive_power_burst_a_dbm"`
	AmplifierDrivePowerChirpADbm  *float64 `gorm:"column:amplifier_drive_power_chirp_a_dbm"`
	AmplifierOutputPowerBurstADbm *float64 `gorm:"column:amplifier_output_power_burst_a_dbm"`
	AmplifierOutputPowerChirpADbm *float64 `gorm:"column:amplifier_output_power_chirp_a_dbm"`
	AntennaHumidity               *float64 `gorm:"column:antenna_humidity"`
	AntennaTemp                   *float64 `gorm:"column:antenna_temp"`
	AspConnection                 *string  `gorm:"column:asp_connection"`
	AspStatusSummary              *string  `gorm:"column:asp_status_summary"`
	AttenuationDbBurstA           *float64 `gorm:"column:attenuation_db_burst_a"`
	BandwidthBurstA               *float64 `gorm:"column:bandwidth_burst_a"`
	CalConstantBurstACopol        *float64 `gorm:"column:cal_constant_burst_a_copol"`
	ClutterFilterEnabled          *int     `gorm:"column:clutter_filter_enabled"`
	ColdNoiseMwBurstACopol        *float64 `gorm:"column:cold_noise_mw_burst_a_copol"`
	CoolantReturnTemp             *float64 `gorm:"column:coolant_return_temp"`
	CoolantSupplyTemp             *float64 `gorm:"column:coolant_supply_temp"`
	EikaTemp                      *float64 `gorm:"column:eika_temp"`
	FiveVdc                       *float64 `gorm:"column:five_vdc"`
	FifteenVdc                    *float64 `gorm:"column:fifteen_vdc"`
	GroupBEnabled                 *int     `gorm:"column:group_b_enabled"`
}

// TableName overrides the GORM default.
func (ProsensingPAF) TableName() string { return "prosensing_paf" }

// IrisBite is the built-in test report of an IRIS radar processor,
// stored as a special attribute set.
type IrisBite struct {
	PacketID     int64     `gorm:"column:packet_id;primaryKey;autoIncrement"`
	Time         time.Time `gorm:"column:time;not null;index"`
	SiteID       int64     `gorm:"column:site_id;not null"`
	InstrumentID int64     `gorm:"column:instrument_id;not null;index"`

	AntennaLocalMode            *int     `gorm:"column:antenna_local_mode"`
	Azimuth                     *float64 `gorm:"column:azimuth"`
	AzimuthRateOfChange         *float64 `gorm:"column:azimuth_rate_of_change"`
	Elevation                   *float64 `gorm:"column:elevation"`
	ElevationRateOfChange       *float64 `gorm:"column:elevation_rate_of_change"`
	InterlockOpen               *int     `gorm:"column:interlock_open"`
	InternalAdcTemperature1     *float64 `gorm:"column:internal_adc_temperature_1"`
	InternalAdcTemperature2     *float64 `gorm:"column:internal_adc_temperature_2"`
	InternalSauxMainPowerStatus *int     `gorm:"column:internal_saux_main_power_status"`
	InternalSauxUpsStatus       *int     `gorm:"column:internal_saux_ups_status"`
	LowAirFlow                  *int     `gorm:"column:low_air_flow"`
	LowWaveguidePressure        *int     `gorm:"column:low_waveguide_pressure"`
	MagnetronCurrentNormal      *int     `gorm:"column:magnetron_current_normal"`
	RadiateOn                   *int     `gorm:"column:radiate_on"`
	RadxcmAnalogForwardPower    *float64 `gorm:"column:radxcm_analog_forward_power"`
	RadxcmAnalogHighVoltage     *float64 `gorm:"column:radxcm_analog_high_voltage"`
	RadxcmAnalogMagPeakCurrent  *float64 `gorm:"column:radxcm_analog_mag_peak_current"`
	RadxcmAnalogPrf             *float64 `gorm:"column:radxcm_analog_prf"`
	RadxcmAnalogPulseWidth      *float64 `gorm:"column:radxcm_analog_pulse_width"`
}

// TableName overrides the GORM default.
func (IrisBite) TableName() string { return "iris_bite" }
