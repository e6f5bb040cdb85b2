package models

import "time"

// Prediction 一次图片分类结果，保存概率最高的四个类别
type Prediction struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SubmittedByID uint      `gorm:"index;not null" json:"submitted_by_id"`
	SubmittedBy   User      `gorm:"foreignKey:SubmittedByID;constraint:OnDelete:CASCADE" json:"-"`
	ImageFile     string    `gorm:"size:255;not null" json:"image_file"`
	Class1        string    `gorm:"column:class_1;size:64;index" json:"class_1"`
	Prob1         float64   `gorm:"column:prob_1" json:"prob_1"`
	Class2        string    `gorm:"column:class_2;size:64" json:"class_2"`
	Prob2         float64   `gorm:"column:prob_2" json:"prob_2"`
	Class3        string    `gorm:"column:class_3;size:64" json:"class_3"`
	Prob3         float64   `gorm:"column:prob_3" json:"prob_3"`
	Class4        string    `gorm:"column:class_4;size:64" json:"class_4"`
	Prob4         float64   `gorm:"column:prob_4" json:"prob_4"`
	UploadedAt    time.Time `gorm:"autoCreateTime;index;<-:create" json:"uploaded_at"`
}

// Classes 按概率降序返回四个类别
func (p *Prediction) Classes() [4]string {
	return [4]string{p.Class1, p.Class2, p.Class3, p.Class4}
}

// Probabilities 按降序返回四个概率
func (p *Prediction) Probabilities() [4]float64 {
	return [4]float64{p.Prob1, p.Prob2, p.Prob3, p.Prob4}
}
