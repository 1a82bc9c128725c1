package codec

import "google.golang.org/protobuf/encoding/protowire"

// Field numbers shared by client and server builds

const (
	statusBusy        protowire.Number = 1
	statusAccepted    protowire.Number = 2
	statusWorking     protowire.Number = 3
	statusCompleted   protowire.Number = 4
	statusJobDir      protowire.Number = 5
	statusJobScrDir   protowire.Number = 6
	statusServerJobID protowire.Number = 7
)

const (
	molAtoms        protowire.Number = 1
	molXyz          protowire.Number = 2
	molUnits        protowire.Number = 3
	molCharge       protowire.Number = 4
	molMultiplicity protowire.Number = 5
	molClosed       protowire.Number = 6
	molRestricted   protowire.Number = 7
)

const (
	inputMol             protowire.Number = 1
	inputRun             protowire.Number = 2
	inputMethod          protowire.Number = 3
	inputBasis           protowire.Number = 4
	inputOrb1AFile       protowire.Number = 5
	inputOrb1BFile       protowire.Number = 6
	inputXyz2            protowire.Number = 7
	inputReturnBondOrder protowire.Number = 8
	inputMMAtomPosition  protowire.Number = 9
	inputMMAtomCharge    protowire.Number = 10
	inputQMMMType        protowire.Number = 11
	inputMDGlobalType    protowire.Number = 12
	inputUserOptions     protowire.Number = 13
)

const (
	outputMol            protowire.Number = 1
	outputEnergy         protowire.Number = 2
	outputGradient       protowire.Number = 3
	outputCharges        protowire.Number = 4
	outputSpins          protowire.Number = 5
	outputDipoles        protowire.Number = 6
	outputJobDir         protowire.Number = 7
	outputJobScrDir      protowire.Number = 8
	outputServerJobID    protowire.Number = 9
	outputOrb1AFile      protowire.Number = 10
	outputOrb1BFile      protowire.Number = 11
	outputOrbEnergies    protowire.Number = 12
	outputOrbOccupations protowire.Number = 13
	outputBondOrder      protowire.Number = 14
	outputMMAtomGradient protowire.Number = 15
)
