package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// MissionParams параметры выполнения миссий
type MissionParams struct {
	OperatingAltitude                   float64 // Рабочая высота полёта, м
	LowAltitude                         float64 // Низкая высота для осмотра пола, м
	LinearVelocity                      float64
	LinearAcceleration                  float64
	AngularVelocity                     float64 // Угловая скорость вращения при осмотре
	AngularAcceleration                 float64
	FlyingIntoHoleDetectionDistance     float64 // Расстояние взвода детектора пролёта, м
	FlyingIntoHolePassDistance          float64 // Отступ точки подлёта от центра проёма, м
	FlyingIntoHoleDetectionPassDistance float64 // Расстояние за плоскостью проёма для засчитывания пролёта, м
	MinBatteryVoltage                   float64 // Напряжение, при котором миссия прерывается, В
	LineAltitude                        float64 // Высота следования по линии, м
	Task1                               Task1Params
	Task2                               Task2Params
}

// Task1Params параметры миссии поиска кубов
type Task1Params struct {
	CubesCount      int     // Количество кубов, которое необходимо найти
	MaxTimerMinutes float64 // Время (мин), которое отводится на миссию
}

// Task2Params параметры миссии с QR-кодами
type Task2Params struct {
	MaxFloorZ               float64 // QR-коды ниже этой высоты считаются нарисованными на полу
	MaxQrDistanceTolerance  float64 // Расстояние, при котором два QR-кода считаются одним
	MaxAssociationDistance  float64 // Расстояние, при котором QR-код и проём считаются связанными
	MaxFloorQrContentLength int     // Более длинное содержимое QR на полу считается ошибкой чтения
	MaxTimerMinutes         float64
}

// MaxDuration возвращает лимит времени миссии поиска кубов
func (p Task1Params) MaxDuration() time.Duration {
	return time.Duration(p.MaxTimerMinutes * float64(time.Minute))
}

// MaxDuration возвращает лимит времени миссии с QR-кодами
func (p Task2Params) MaxDuration() time.Duration {
	return time.Duration(p.MaxTimerMinutes * float64(time.Minute))
}

// DefaultMissionParams возвращает параметры по умолчанию
func DefaultMissionParams() MissionParams {
	return MissionParams{
		OperatingAltitude:                   1.5,
		LowAltitude:                         0.5,
		LinearVelocity:                      0.1,
		LinearAcceleration:                  0.1,
		AngularVelocity:                     0.1,
		AngularAcceleration:                 0.1,
		FlyingIntoHoleDetectionDistance:     0.3,
		FlyingIntoHolePassDistance:          0.5,
		FlyingIntoHoleDetectionPassDistance: 0.3,
		MinBatteryVoltage:                   10.0,
		LineAltitude:                        1.0,
		Task1: Task1Params{
			CubesCount:      5,
			MaxTimerMinutes: 9.0,
		},
		Task2: Task2Params{
			MaxFloorZ:               0.2,
			MaxQrDistanceTolerance:  0.2,
			MaxAssociationDistance:  0.6,
			MaxFloorQrContentLength: 2,
			MaxTimerMinutes:         9.0,
		},
	}
}

// paramsFile содержимое YAML файла. Указатели позволяют отличить
// отсутствующий ключ от нулевого значения.
type paramsFile struct {
	OperatingAltitude                   *float64 `yaml:"operating_altitude"`
	LowAltitude                         *float64 `yaml:"low_altitude"`
	LinearVelocity                      *float64 `yaml:"linear_velocity"`
	LinearAcceleration                  *float64 `yaml:"linear_acceleration"`
	AngularVelocity                     *float64 `yaml:"angular_velocity"`
	AngularAcceleration                 *float64 `yaml:"angular_acceleration"`
	FlyingIntoHoleDetectionDistance     *float64 `yaml:"flying_into_hole_detection_distance"`
	FlyingIntoHolePassDistance          *float64 `yaml:"flying_into_hole_pass_distance"`
	FlyingIntoHoleDetectionPassDistance *float64 `yaml:"flying_into_hole_detection_pass_distance"`
	MinBatteryVoltage                   *float64 `yaml:"min_battery_voltage"`
	LineAltitude                        *float64 `yaml:"line_altitude"`
	Task1CubesCount                     *int     `yaml:"task1_cubes_count"`
	Task1MaxTimerMinutes                *float64 `yaml:"task1_max_timer_minutes"`
	Task2MaxFloorZ                      *float64 `yaml:"task2_max_floor_z"`
	Task2MaxQrDistanceTolerance         *float64 `yaml:"task2_max_qr_distance_tolerance"`
	Task2MaxAssociationDistance         *float64 `yaml:"task2_max_association_distance"`
	Task2MaxFloorQrContentLength        *int     `yaml:"task2_max_floor_qr_content_length"`
	Task2MaxTimerMinutes                *float64 `yaml:"task2_max_timer_minutes"`
}

// LoadMissionParams читает параметры миссий из YAML файла.
// Пустой путь означает значения по умолчанию. Каждый отсутствующий ключ логируется.
func LoadMissionParams(path string, logger *logrus.Logger) (MissionParams, error) {
	var file paramsFile
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return MissionParams{}, fmt.Errorf("failed to read mission params: %w", err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return MissionParams{}, fmt.Errorf("failed to parse mission params: %w", err)
		}
	}
	return file.resolve(logger), nil
}

// ParseMissionParams разбирает параметры миссий из YAML документа
func ParseMissionParams(data []byte, logger *logrus.Logger) (MissionParams, error) {
	var file paramsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return MissionParams{}, fmt.Errorf("failed to parse mission params: %w", err)
	}
	return file.resolve(logger), nil
}

func (f paramsFile) resolve(logger *logrus.Logger) MissionParams {
	p := DefaultMissionParams()

	float := func(name string, src *float64, dst *float64) {
		if src == nil {
			logger.WithFields(logrus.Fields{"param": name, "value": *dst}).Info("Параметр не задан, используется значение по умолчанию")
			return
		}
		*dst = *src
	}
	integer := func(name string, src *int, dst *int) {
		if src == nil {
			logger.WithFields(logrus.Fields{"param": name, "value": *dst}).Info("Параметр не задан, используется значение по умолчанию")
			return
		}
		*dst = *src
	}

	float("operating_altitude", f.OperatingAltitude, &p.OperatingAltitude)
	float("low_altitude", f.LowAltitude, &p.LowAltitude)
	float("linear_velocity", f.LinearVelocity, &p.LinearVelocity)
	float("linear_acceleration", f.LinearAcceleration, &p.LinearAcceleration)
	float("angular_velocity", f.AngularVelocity, &p.AngularVelocity)
	float("angular_acceleration", f.AngularAcceleration, &p.AngularAcceleration)
	float("flying_into_hole_detection_distance", f.FlyingIntoHoleDetectionDistance, &p.FlyingIntoHoleDetectionDistance)
	float("flying_into_hole_pass_distance", f.FlyingIntoHolePassDistance, &p.FlyingIntoHolePassDistance)
	float("flying_into_hole_detection_pass_distance", f.FlyingIntoHoleDetectionPassDistance, &p.FlyingIntoHoleDetectionPassDistance)
	float("min_battery_voltage", f.MinBatteryVoltage, &p.MinBatteryVoltage)
	float("line_altitude", f.LineAltitude, &p.LineAltitude)
	integer("task1_cubes_count", f.Task1CubesCount, &p.Task1.CubesCount)
	float("task1_max_timer_minutes", f.Task1MaxTimerMinutes, &p.Task1.MaxTimerMinutes)
	float("task2_max_floor_z", f.Task2MaxFloorZ, &p.Task2.MaxFloorZ)
	float("task2_max_qr_distance_tolerance", f.Task2MaxQrDistanceTolerance, &p.Task2.MaxQrDistanceTolerance)
	float("task2_max_association_distance", f.Task2MaxAssociationDistance, &p.Task2.MaxAssociationDistance)
	integer("task2_max_floor_qr_content_length", f.Task2MaxFloorQrContentLength, &p.Task2.MaxFloorQrContentLength)
	float("task2_max_timer_minutes", f.Task2MaxTimerMinutes, &p.Task2.MaxTimerMinutes)

	return p
}
