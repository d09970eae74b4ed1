package models

import "time"

// Point представляет точку в трёхмерном пространстве (СК map, метры)
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion представляет ориентацию в виде единичного кватерниона
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// IdentityQuaternion возвращает нулевой поворот
func IdentityQuaternion() Quaternion {
	return Quaternion{W: 1}
}

// Pose представляет позицию и ориентацию
type Pose struct {
	Position    Point      `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// Vector3 представляет тройку значений (размеры объекта, скорость и т.п.)
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DetectedObject объект, обнаруженный узлом восприятия (проём, куб)
type DetectedObject struct {
	ID         int64   `json:"id"`         // Уникальный в рамках сессии восприятия ID
	Pose       Pose    `json:"pose"`       // Центр и ориентация объекта
	Dimensions Vector3 `json:"dimensions"` // Размеры: x - глубина, y - ширина, z - высота
}

// PointStamped точка с указанием системы координат
type PointStamped struct {
	FrameID string `json:"frame_id"`
	Point   Point  `json:"point"`
}

// PoseStamped поза с указанием системы координат
type PoseStamped struct {
	FrameID string `json:"frame_id"`
	Pose    Pose   `json:"pose"`
}

// QRCode QR-код, обнаруженный детектором
type QRCode struct {
	FrameID  string `json:"frame_id"` // СК, в которой передана позиция
	Position Point  `json:"position"` // Позиция центра кода
	Data     string `json:"data"`     // Содержимое кода
}

// QRCodeArray сообщение топика с QR-кодами
type QRCodeArray struct {
	QRCodes []QRCode `json:"qr_codes"`
}

// Path сообщение топика с последовательностью поз
type Path struct {
	FrameID string        `json:"frame_id"`
	Poses   []PoseStamped `json:"poses"`
}

// BatteryState сообщение топика с состоянием аккумулятора
type BatteryState struct {
	Voltage float64 `json:"voltage"` // Вольтаж, В
}

// DroneStatus сообщение о смене состояния дрона
type DroneStatus struct {
	State   string `json:"state"`    // Человекочитаемое описание состояния
	IsError bool   `json:"is_error"` // true, если состояние ошибочное
}

// NodeStatus статус узла для мониторинга
type NodeStatus struct {
	Status string `json:"status"`
}

// Статусы узла для мониторинга
const (
	NodeStatusInitialized = "INITIALIZED"
	NodeStatusStarted     = "STARTED"
)

// PositionTarget прямое задание целевой точки контроллеру полёта
type PositionTarget struct {
	FrameID         string  `json:"frame_id"`
	CoordinateFrame string  `json:"coordinate_frame"`
	IgnoreVelocity  bool    `json:"ignore_velocity"`
	IgnoreAccel     bool    `json:"ignore_acceleration"`
	Position        Point   `json:"position"`
	Yaw             float64 `json:"yaw"`
	YawRate         float64 `json:"yaw_rate"`
}

// HealthResponse представляет ответ проверки здоровья внешнего сервиса
type HealthResponse struct {
	Status  string `json:"status"`  // Статус сервиса (healthy/unhealthy)
	Version string `json:"version"` // Версия сервиса
}

// MissionEvent сообщение топика событий миссии
type MissionEvent struct {
	RunID   string                 `json:"run_id"`
	Task    int                    `json:"task"`
	Event   string                 `json:"event"`
	From    string                 `json:"from,omitempty"`
	To      string                 `json:"to,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Time    time.Time              `json:"time"`
}

// Топики, которыми обменивается узел
const (
	TopicStatus            = "task_manager/status"
	TopicEvents            = "task_manager/events"
	TopicNodesMonitor      = "nodes_monitor"
	TopicObjectCoordinates = "object_coordinates"
	TopicGlobalPath        = "global_path"
	TopicSetpointRaw       = "mavros/setpoint_raw/local"
	TopicQRCodes           = "vision/qr_codes"
	TopicLinePoints        = "line_detector_node/line_points"
	TopicDronePose         = "mavros/local_position/pose"
	TopicBattery           = "mavros/battery"
)

// FrameMap имя глобальной системы координат
const FrameMap = "map"
