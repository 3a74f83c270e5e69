package logic

// SensorInput is a sensor with its calibration offset and parameter tag.
// It is immutable once built; inputs are only ever replaced wholesale.
type SensorInput struct {
	sensor            Sensor
	calibrationOffset float64
	parameterCode     byte
	name              string
}

// NewSensorInput wraps a sensor. The sensor is borrowed, not owned.
func NewSensorInput(s Sensor, calibrationOffset float64, parameterCode byte) SensorInput {
	return SensorInput{
		sensor:            s,
		calibrationOffset: calibrationOffset,
		parameterCode:     parameterCode,
		name:              s.Name(),
	}
}

// Get returns the calibrated reading.
func (in SensorInput) Get() float64 {
	return in.sensor.Read() + in.calibrationOffset
}

// Name returns the sensor name captured when the input was built.
func (in SensorInput) Name() string {
	return in.name
}

// ParameterCode returns the tag shared by every input, e.g. 'T'.
func (in SensorInput) ParameterCode() byte {
	return in.parameterCode
}

// CalibrationOffset returns the value added to every raw reading.
func (in SensorInput) CalibrationOffset() float64 {
	return in.calibrationOffset
}
