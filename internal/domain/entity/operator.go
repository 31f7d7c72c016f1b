package entity

// OperatorMode экран, на котором сейчас находится оператор
type OperatorMode string

const (
	ModeHome      OperatorMode = "home"       // Главное меню
	ModeCamera    OperatorMode = "camera"     // Съёмка камерой станции
	ModeUpload    OperatorMode = "upload"     // Ожидание фото из галереи
	ModeLabelScan OperatorMode = "label_scan" // Ожидание фото этикетки раствора
	ModeResult    OperatorMode = "result"     // Ожидание или показ результата
)

// Operator представляет медсестру, работающую с ботом в чате
type Operator struct {
	ID          int64        // Telegram User ID
	ChatID      int64        // Telegram Chat ID
	Mode        OperatorMode // Текущий экран
	AutoCapture bool         // Включена автосъёмка
}

// NewOperator создаёт оператора на главном экране
func NewOperator(userID, chatID int64) *Operator {
	return &Operator{
		ID:     userID,
		ChatID: chatID,
		Mode:   ModeHome,
	}
}

// SetMode переключает экран оператора
func (o *Operator) SetMode(mode OperatorMode) {
	o.Mode = mode
}
