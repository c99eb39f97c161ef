package ai

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"alertcam/internal/logger"
	"alertcam/internal/model"
	"alertcam/internal/service/ai/coco"

	"gocv.io/x/gocv"
)

// DetectorService runs an SSD object detection network on camera frames.
type DetectorService struct {
	net        gocv.Net
	modelPath  string
	configPath string
	labels     map[int]string
	threshold  float64
	logger     *logger.Logger
}

// NewDetectorService loads the network from modelPath/configPath.
// Detections scoring at or below threshold are discarded.
func NewDetectorService(modelPath, configPath string, labels map[int]string, threshold float64, logger *logger.Logger) (*DetectorService, error) {
	if labels == nil {
		labels = coco.Labels()
	}
	service := &DetectorService{
		modelPath:  modelPath,
		configPath: configPath,
		labels:     labels,
		threshold:  threshold,
		logger:     logger,
	}

	if err := service.initializeNet(); err != nil {
		return nil, err
	}
	return service, nil
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}

	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.configPath)
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)

	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)

	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.logger.Info("Detection network initialized successfully")
	return nil
}

// Detect runs the network on a frame and returns the detections above the
// confidence threshold, in network output order.
func (s *DetectorService) Detect(mat gocv.Mat) ([]model.Detection, error) {
	if s.net.Empty() {
		return nil, fmt.Errorf("detection network not initialized")
	}
	if mat.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}

	//Create blob with parameters that fit ssd coco net input
	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	s.net.SetInput(blob, "")

	output := s.net.Forward("")
	defer output.Close()

	// Rows: [ batch_id, class_id, confidence, x1, y1, x2, y2 ]
	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	cols, height := float32(mat.Cols()), float32(mat.Rows())
	var results []model.Detection
	for i := 0; i < rows.Rows(); i++ {
		confidence := float64(rows.GetFloatAt(i, 2))
		if confidence <= s.threshold {
			continue
		}
		classID := int(rows.GetFloatAt(i, 1))
		box := model.BoundingBox{
			X1: clamp(int(rows.GetFloatAt(i, 3)*cols), mat.Cols()),
			Y1: clamp(int(rows.GetFloatAt(i, 4)*height), mat.Rows()),
			X2: clamp(int(rows.GetFloatAt(i, 5)*cols), mat.Cols()),
			Y2: clamp(int(rows.GetFloatAt(i, 6)*height), mat.Rows()),
		}
		results = append(results, model.Detection{
			Label:      coco.Name(s.labels, classID),
			Confidence: confidence,
			Box:        box,
		})
	}

	for _, object := range results {
		s.logger.Debug("Detected %s (%.2f)", object.Label, object.Confidence)
	}
	return results, nil
}

// Annotate draws the detections on a copy of the frame and returns it
// encoded as JPEG. The frame itself is left untouched.
func (s *DetectorService) Annotate(mat gocv.Mat, detections []model.Detection) ([]byte, error) {
	red := color.RGBA{R: 255, G: 0, B: 0, A: 0}

	canvas := mat.Clone()
	defer canvas.Close()

	for _, detection := range detections {
		rect := image.Rect(detection.Box.X1, detection.Box.Y1, detection.Box.X2, detection.Box.Y2)
		if err := gocv.Rectangle(&canvas, rect, red, 2); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %v", err)
		}

		label := fmt.Sprintf("%s (%.2f)", detection.Label, detection.Confidence)
		pt := image.Pt(detection.Box.X1, detection.Box.Y1-5)
		if err := gocv.PutText(&canvas, label, pt, gocv.FontHersheySimplex, 0.5, red, 1); err != nil {
			return nil, fmt.Errorf("failed to draw text: %v", err)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, canvas)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()
	finalImage := make([]byte, buf.Len())
	copy(finalImage, buf.GetBytes())

	return finalImage, nil
}

// Close releases the network.
func (s *DetectorService) Close() error {
	return s.net.Close()
}

func clamp(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
