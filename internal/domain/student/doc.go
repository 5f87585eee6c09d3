// Package student содержит доменную модель трекера успеваемости студентов.
//
// Пакет определяет:
//
//   - Value object Student: имя, roll number и оценки по предметам
//   - Info: каноническое представление для веба, консоли и экспорта
//   - Record / GradeRecord: строки хранилища
//   - Интерфейсы хранилища: Store, Tx
//
// # Архитектурные принципы
//
//  1. Нулевые внешние зависимости - только стандартная библиотека Go
//  2. Dependency Inversion - пакет определяет интерфейсы, которые реализуются в infrastructure
//  3. Инварианты хранилища (UNIQUE, ON DELETE CASCADE) живут в схеме, а не только в коде
//
// # Основные сущности
//
// Student собирается из строк хранилища:
//
//	s := FromRecords(rec, grades)
//	info := s.Info() // {"name", "roll_number", "grades", "average"}
//
// Среднее пустого набора оценок студента равно 0, в отличие от среднего по предмету,
// которое для пустого набора не определено.
package student
