package yolo

// PredictRequest for POST /predict
type PredictRequest struct {
	FrameData  string  `json:"frame_data"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"conf"`
}

// PredictResponse from POST /predict
type PredictResponse struct {
	Detections []Prediction `json:"detections"`
	Timing     Timing       `json:"timing"`
}

// Prediction is one raw detection, box in xyxy pixel coordinates.
type Prediction struct {
	Box        [4]float64 `json:"box"`
	ClassID    int        `json:"class_id"`
	Confidence float64    `json:"confidence"`
}

type Timing struct {
	TotalMS     float64 `json:"total_ms"`
	InferenceMS float64 `json:"inference_ms"`
}
