package report

// Flat tabular records produced by the engine, suitable for downstream
// reporting. Every record batch is keyed by the run ID that produced it.

// FoldPrediction is one out-of-fold prediction cell
type FoldPrediction struct {
	Species   string  `json:"species" db:"species"`
	Axis      string  `json:"axis" db:"axis"`
	Repeat    int     `json:"repeat" db:"repeat"`
	Fold      int     `json:"fold" db:"fold"`
	Observed  float64 `json:"observed" db:"observed"`
	Predicted float64 `json:"predicted" db:"predicted"`
}

// FoldMetrics are the per repeat×fold error metrics
type FoldMetrics struct {
	Axis   string  `json:"axis" db:"axis"`
	Repeat int     `json:"repeat" db:"repeat"`
	Fold   int     `json:"fold" db:"fold"`
	N      int     `json:"n" db:"n"`
	R2     float64 `json:"r2" db:"r2"`
	RMSE   float64 `json:"rmse" db:"rmse"`
	MAE    float64 `json:"mae" db:"mae"`
	Status string  `json:"status" db:"status"`
}

// MetricSummary aggregates metrics over all successful repeat×fold cells
type MetricSummary struct {
	Axis     string  `json:"axis" db:"axis"`
	Cells    int     `json:"cells" db:"cells"`
	Skipped  int     `json:"skipped" db:"skipped"`
	R2Mean   float64 `json:"r2_mean" db:"r2_mean"`
	R2SD     float64 `json:"r2_sd" db:"r2_sd"`
	RMSEMean float64 `json:"rmse_mean" db:"rmse_mean"`
	RMSESD   float64 `json:"rmse_sd" db:"rmse_sd"`
	MAEMean  float64 `json:"mae_mean" db:"mae_mean"`
	MAESD    float64 `json:"mae_sd" db:"mae_sd"`
}

// ClaimRecord is one conditional-independence claim row
type ClaimRecord struct {
	Group       string  `json:"group,omitempty" db:"grp"`
	Claim       string  `json:"claim" db:"claim"`
	N           int     `json:"n" db:"n"`
	Coefficient float64 `json:"coefficient" db:"coefficient"`
	TValue      float64 `json:"t_value" db:"t_value"`
	PValue      float64 `json:"p_value" db:"p_value"`
	Skipped     bool    `json:"skipped" db:"skipped"`
	SkipReason  string  `json:"skip_reason,omitempty" db:"skip_reason"`
}

// DSepRecord is a combined Fisher statistic row (overall or per group)
type DSepRecord struct {
	Group  string  `json:"group,omitempty" db:"grp"`
	C      float64 `json:"c" db:"c"`
	DF     int     `json:"df" db:"df"`
	PValue float64 `json:"p_value" db:"p_value"`
	Claims int     `json:"claims" db:"claims"`
}

// PairCorrelation is one residual correlation row with FDR adjustment
type PairCorrelation struct {
	AxisA    string  `json:"axis_a" db:"axis_a"`
	AxisB    string  `json:"axis_b" db:"axis_b"`
	N        int     `json:"n" db:"n"`
	R        float64 `json:"r" db:"r"`
	PValue   float64 `json:"p_value" db:"p_value"`
	AdjP     float64 `json:"adj_p" db:"adj_p"`
	Selected bool    `json:"selected" db:"selected"`
}

// DistrictGroupFit is a per-group copula refit with shrinkage
type DistrictGroupFit struct {
	Group  string  `json:"group" db:"grp"`
	N      int     `json:"n" db:"n"`
	Rho    float64 `json:"rho" db:"rho"`
	Weight float64 `json:"weight" db:"weight"` // n/(n+shrinkK), weight on the group estimate
}

// DistrictRecord is one fitted residual-dependency district
type DistrictRecord struct {
	AxisA   string             `json:"axis_a" db:"axis_a"`
	AxisB   string             `json:"axis_b" db:"axis_b"`
	Family  string             `json:"family" db:"family"`
	Rho     float64            `json:"rho" db:"rho"`
	N       int                `json:"n" db:"n"`
	LogLik  float64            `json:"log_lik" db:"log_lik"`
	AIC     float64            `json:"aic" db:"aic"`
	Default bool               `json:"default" db:"is_default"` // came from the caller-supplied fallback set
	Groups  []DistrictGroupFit `json:"groups,omitempty"`
}

// BlendRecord reports the cross-validated structural/phylogenetic blend
type BlendRecord struct {
	Axis      string  `json:"axis" db:"axis"`
	Alpha     float64 `json:"alpha" db:"alpha"`
	R2SEM     float64 `json:"r2_sem" db:"r2_sem"`
	R2Phylo   float64 `json:"r2_phylo" db:"r2_phylo"`
	R2Blend   float64 `json:"r2_blend" db:"r2_blend"`
	XExponent float64 `json:"x_exponent" db:"x_exponent"`
	KTrunc    int     `json:"k_trunc" db:"k_trunc"`
}

// CoefficientStability is one bootstrap coefficient-stability row
type CoefficientStability struct {
	Axis       string  `json:"axis" db:"axis"`
	Term       string  `json:"term" db:"term"`
	Estimate   float64 `json:"estimate" db:"estimate"`
	BootMean   float64 `json:"boot_mean" db:"boot_mean"`
	BootSD     float64 `json:"boot_sd" db:"boot_sd"`
	Replicates int     `json:"replicates" db:"replicates"`
}
