package epd

import "fmt"

// Command is a controller opcode.
type Command byte

const (
	PanelSetting                 Command = 0x00
	PowerSetting                 Command = 0x01
	PowerOff                     Command = 0x02
	PowerOffSequenceSetting      Command = 0x03
	PowerOn                      Command = 0x04
	PowerOnMeasure               Command = 0x05
	BoosterSoftStart             Command = 0x06
	DeepSleep                    Command = 0x07
	DisplayStartTransmission1    Command = 0x10
	DataStop                     Command = 0x11
	DisplayRefresh               Command = 0x12
	DisplayStartTransmission2    Command = 0x13
	AutoSequence                 Command = 0x17
	VcomLut                      Command = 0x20
	WhiteToWhiteLut              Command = 0x21
	BlackToWhiteLut              Command = 0x22
	WhiteToBlackLut              Command = 0x23
	BlackToBlackLut              Command = 0x24
	LutOption                    Command = 0x2a
	PllControl                   Command = 0x30
	TemperatureSensorCalibration Command = 0x40
	TemperatureSensorSelection   Command = 0x41
	TemperatureSensorWrite       Command = 0x42
	TemperatureSensorRead        Command = 0x43
	PanelBreakCheck              Command = 0x44
	VcomAndDataIntervalSetting   Command = 0x50
	LowerPowerDetection          Command = 0x51
	TconSetting                  Command = 0x60
	ResolutionSetting            Command = 0x61
	GateSourceStartSetting       Command = 0x65
	Revision                     Command = 0x70
	GetStatus                    Command = 0x71
	AutoMeasurementVcom          Command = 0x80
	ReadVcomValue                Command = 0x81
	VcmDcSetting                 Command = 0x82
	PartialWindow                Command = 0x90
	PartialIn                    Command = 0x91
	PartialOut                   Command = 0x92
	ProgramMode                  Command = 0xa0
	ActiveProgramming            Command = 0xa1
	ReadOtp                      Command = 0xa2
	CascadeSetting               Command = 0xe0
	PowerSaving                  Command = 0xe3
	LvdVoltageSelect             Command = 0xe4
	ForceTemperature             Command = 0xe5
)

var commandNames = map[Command]string{
	PanelSetting:                 "PanelSetting",
	PowerSetting:                 "PowerSetting",
	PowerOff:                     "PowerOff",
	PowerOffSequenceSetting:      "PowerOffSequenceSetting",
	PowerOn:                      "PowerOn",
	PowerOnMeasure:               "PowerOnMeasure",
	BoosterSoftStart:             "BoosterSoftStart",
	DeepSleep:                    "DeepSleep",
	DisplayStartTransmission1:    "DisplayStartTransmission1",
	DataStop:                     "DataStop",
	DisplayRefresh:               "DisplayRefresh",
	DisplayStartTransmission2:    "DisplayStartTransmission2",
	AutoSequence:                 "AutoSequence",
	VcomLut:                      "VcomLut",
	WhiteToWhiteLut:              "WhiteToWhiteLut",
	BlackToWhiteLut:              "BlackToWhiteLut",
	WhiteToBlackLut:              "WhiteToBlackLut",
	BlackToBlackLut:              "BlackToBlackLut",
	LutOption:                    "LutOption",
	PllControl:                   "PllControl",
	TemperatureSensorCalibration: "TemperatureSensorCalibration",
	TemperatureSensorSelection:   "TemperatureSensorSelection",
	TemperatureSensorWrite:       "TemperatureSensorWrite",
	TemperatureSensorRead:        "TemperatureSensorRead",
	PanelBreakCheck:              "PanelBreakCheck",
	VcomAndDataIntervalSetting:   "VcomAndDataIntervalSetting",
	LowerPowerDetection:          "LowerPowerDetection",
	TconSetting:                  "TconSetting",
	ResolutionSetting:            "ResolutionSetting",
	GateSourceStartSetting:       "GateSourceStartSetting",
	Revision:                     "Revision",
	GetStatus:                    "GetStatus",
	AutoMeasurementVcom:          "AutoMeasurementVcom",
	ReadVcomValue:                "ReadVcomValue",
	VcmDcSetting:                 "VcmDcSetting",
	PartialWindow:                "PartialWindow",
	PartialIn:                    "PartialIn",
	PartialOut:                   "PartialOut",
	ProgramMode:                  "ProgramMode",
	ActiveProgramming:            "ActiveProgramming",
	ReadOtp:                      "ReadOtp",
	CascadeSetting:               "CascadeSetting",
	PowerSaving:                  "PowerSaving",
	LvdVoltageSelect:             "LvdVoltageSelect",
	ForceTemperature:             "ForceTemperature",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(0x%02x)", byte(c))
}
