// internal/fieldbus/server.go
package fieldbus

import (
	"encoding/binary"
	"errors"
	"log/slog"

	"github.com/tbrandon/mbserver"

	"github.com/tamzrod/pressure-bridge/internal/regmap"
)

// Modbus function codes served or refused by this adapter.
const (
	fcReadCoils              uint8 = 1
	fcReadDiscreteInputs     uint8 = 2
	fcReadHoldingRegisters   uint8 = 3
	fcReadInputRegisters     uint8 = 4
	fcWriteSingleCoil        uint8 = 5
	fcWriteSingleRegister    uint8 = 6
	fcWriteMultipleCoils     uint8 = 15
	fcWriteMultipleRegisters uint8 = 16
)

// maxReadQuantity is the protocol limit for one register read.
const maxReadQuantity = 125

// Exception codes. mbserver compares the returned pointer against
// &mbserver.Success, so success must always return that exact address.
var (
	exIllegalFunction    = mbserver.Exception(1)
	exIllegalDataAddress = mbserver.Exception(2)
	exIllegalDataValue   = mbserver.Exception(3)
	exTargetNoResponse   = mbserver.Exception(11)
)

// Observer receives one outcome per request. Optional.
type Observer interface {
	ObserveRequest(fc uint8, exception uint8)
}

// Config is the server boundary config.
type Config struct {
	Listen string // e.g. ":502"
	UnitID uint8
}

// Server exposes a register image read-only over Modbus-TCP.
// It never decides register content; it copies ranges out of the image.
type Server struct {
	cfg   Config
	image *regmap.Image
	obs   Observer
	log   *slog.Logger

	mb *mbserver.Server
}

// New builds the server and installs handlers. Call Start to listen.
func New(cfg Config, image *regmap.Image, obs Observer, log *slog.Logger) (*Server, error) {
	if cfg.Listen == "" {
		return nil, errors.New("fieldbus: listen address required")
	}
	if image == nil {
		return nil, errors.New("fieldbus: image required")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		cfg:   cfg,
		image: image,
		obs:   obs,
		log:   log.With("component", "fieldbus"),
		mb:    mbserver.NewServer(),
	}

	s.mb.RegisterFunctionHandler(fcReadHoldingRegisters, s.readRegisters)
	s.mb.RegisterFunctionHandler(fcReadInputRegisters, s.readRegisters)

	for _, fc := range []uint8{
		fcReadCoils,
		fcReadDiscreteInputs,
		fcWriteSingleCoil,
		fcWriteSingleRegister,
		fcWriteMultipleCoils,
		fcWriteMultipleRegisters,
	} {
		s.mb.RegisterFunctionHandler(fc, s.refuse)
	}

	return s, nil
}

// Start listens on the configured address. Serving happens in the background.
func (s *Server) Start() error {
	if err := s.mb.ListenTCP(s.cfg.Listen); err != nil {
		return err
	}
	s.log.Info("modbus tcp server started", "listen", s.cfg.Listen, "unit_id", s.cfg.UnitID, "words", s.image.Len())
	return nil
}

// Close stops listening.
func (s *Server) Close() {
	s.mb.Close()
}

// readRegisters serves FC3 and FC4 from the same image.
func (s *Server) readRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	fc := frame.GetFunction()

	if !s.unitMatches(frame) {
		return s.fail(fc, &exTargetNoResponse)
	}

	data := frame.GetData()
	if len(data) < 4 {
		return s.fail(fc, &exIllegalDataValue)
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	qty := binary.BigEndian.Uint16(data[2:4])
	if qty == 0 || qty > maxReadQuantity {
		return s.fail(fc, &exIllegalDataValue)
	}

	regs, err := s.image.ReadRange(addr, qty)
	if err != nil {
		return s.fail(fc, &exIllegalDataAddress)
	}

	s.observe(fc, 0)
	return append([]byte{byte(2 * len(regs))}, packRegisters(regs)...), &mbserver.Success
}

// refuse answers everything that is not a register read. The image is read-only.
func (s *Server) refuse(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	fc := frame.GetFunction()
	if !s.unitMatches(frame) {
		return s.fail(fc, &exTargetNoResponse)
	}
	return s.fail(fc, &exIllegalFunction)
}

func (s *Server) unitMatches(frame mbserver.Framer) bool {
	tf, ok := frame.(*mbserver.TCPFrame)
	if !ok {
		return true
	}
	return tf.Device == s.cfg.UnitID
}

func (s *Server) fail(fc uint8, ex *mbserver.Exception) ([]byte, *mbserver.Exception) {
	s.observe(fc, uint8(*ex))
	s.log.Debug("request refused", "fc", fc, "exception", uint8(*ex))
	return []byte{}, ex
}

func (s *Server) observe(fc, ex uint8) {
	if s.obs != nil {
		s.obs.ObserveRequest(fc, ex)
	}
}

// Modbus register memory order (BIG-ENDIAN)
func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
