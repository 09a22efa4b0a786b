// Package loader reads and writes layer parameters in the SafeTensors format.
//
// Float weights exported by a training framework are read as F32, F64, F16 or
// BF16 and decoded to float32 for the weight quantizer. Quantized weights are
// stored as I16 together with the fixed-point format in the header metadata,
// so an inference process can refuse weights quantized for a different F.
//
// Example:
//
//	r, err := loader.NewSafeTensorsReader("lenet_fixed.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	w, err := r.LoadInt16("conv1.weight")
package loader
